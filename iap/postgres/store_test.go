//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	postgrestest "github.com/code-payments/flipchat-iap/database/postgres/test"

	"github.com/code-payments/flipchat-iap/iap/tests"
)

var databaseUrl string

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	var cleanup func()
	databaseUrl, cleanup, err = postgrestest.StartPostgresDB(pool)
	if err != nil {
		log.WithError(err).Error("Error starting postgres image")
		os.Exit(1)
	}

	db, disconnect, err := postgrestest.WaitForConnection(databaseUrl)
	if err != nil {
		log.WithError(err).Error("Error waiting for connection")
		cleanup()
		os.Exit(1)
	}

	err = InitSchema(context.Background(), db)
	disconnect()
	if err != nil {
		log.WithError(err).Error("Error creating schema")
		cleanup()
		os.Exit(1)
	}

	code := m.Run()
	cleanup()
	os.Exit(code)
}

func TestIap_PostgresStore(t *testing.T) {
	db, disconnect, err := postgrestest.WaitForConnection(databaseUrl)
	require.NoError(t, err)
	defer disconnect()

	testStore := NewInPostgres(db, []byte("install-1"))
	teardown := func() {
		testStore.(*store).reset()
	}
	tests.RunStoreTests(t, testStore, teardown)
}

func TestIap_PostgresStoreOwnersAreIsolated(t *testing.T) {
	db, disconnect, err := postgrestest.WaitForConnection(databaseUrl)
	require.NoError(t, err)
	defer disconnect()

	ctx := context.Background()
	first := NewInPostgres(db, []byte("install-1"))
	second := NewInPostgres(db, []byte("install-2"))
	defer first.(*store).reset()

	require.NoError(t, first.SetEntitlement(ctx, "com.app.pro", true))

	owned, err := second.IsEntitled(ctx, "com.app.pro")
	require.NoError(t, err)
	require.False(t, owned)

	owned, err = first.IsEntitled(ctx, "com.app.pro")
	require.NoError(t, err)
	require.True(t, owned)
}
