package test

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"

	"github.com/code-payments/code-server/pkg/retry"
	"github.com/code-payments/code-server/pkg/retry/backoff"

	_ "github.com/jackc/pgx/v4/stdlib"
)

const (
	containerName     = "postgres"
	containerVersion  = "16-alpine"
	containerAutoKill = 120 // seconds

	port     = 5432
	user     = "iap"
	password = "iap"
	dbName   = "iap"
)

// StartPostgresDB starts a throwaway postgres container and returns its
// connection URL. The container is removed automatically after
// containerAutoKill seconds.
func StartPostgresDB(pool *dockertest.Pool) (databaseUrl string, cleanup func(), err error) {
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: containerName,
		Tag:        containerVersion,
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbName,
		},
		ExposedPorts: []string{fmt.Sprintf("%d/tcp", port)},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return "", nil, errors.Wrap(err, "could not start postgres container")
	}

	if err := resource.Expire(containerAutoKill); err != nil {
		return "", nil, errors.Wrap(err, "could not set container expiry")
	}

	hostAndPort := resource.GetHostPort(fmt.Sprintf("%d/tcp", port))
	databaseUrl = fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", user, password, hostAndPort, dbName)

	cleanup = func() {
		if err := pool.Purge(resource); err != nil {
			fmt.Printf("Could not purge resource: %s\n", err)
		}
	}

	return databaseUrl, cleanup, nil
}

// WaitForConnection opens a connection pool and retries until the database
// accepts connections. The returned func closes the pool.
func WaitForConnection(databaseUrl string) (*sql.DB, func(), error) {
	db, err := sql.Open("pgx", databaseUrl)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not open database")
	}

	_, err = retry.Retry(
		db.Ping,
		retry.Limit(50),
		retry.Backoff(backoff.Constant(500*time.Millisecond), 500*time.Second),
	)
	if err != nil {
		db.Close()
		return nil, nil, errors.Wrap(err, "database never became ready")
	}

	return db, func() { db.Close() }, nil
}
