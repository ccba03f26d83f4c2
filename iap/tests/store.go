package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/flipchat-iap/iap"
)

func RunStoreTests(t *testing.T, s iap.EntitlementStore, teardown func()) {
	for _, tf := range []func(t *testing.T, s iap.EntitlementStore){
		testEntitlementStore_HappyPath,
		testEntitlementStore_Idempotent,
		testEntitlementStore_Revoke,
		testEntitlementStore_IndependentProducts,
		testEntitlementStore_EmptyProduct,
	} {
		tf(t, s)
		teardown()
	}
}

func testEntitlementStore_HappyPath(t *testing.T, store iap.EntitlementStore) {
	ctx := context.Background()

	owned, err := store.IsEntitled(ctx, "com.app.pro")
	require.NoError(t, err)
	require.False(t, owned)

	require.NoError(t, store.SetEntitlement(ctx, "com.app.pro", true))

	owned, err = store.IsEntitled(ctx, "com.app.pro")
	require.NoError(t, err)
	require.True(t, owned)
}

func testEntitlementStore_Idempotent(t *testing.T, store iap.EntitlementStore) {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.SetEntitlement(ctx, "com.app.pro", true))
	}

	owned, err := store.IsEntitled(ctx, "com.app.pro")
	require.NoError(t, err)
	require.True(t, owned)
}

func testEntitlementStore_Revoke(t *testing.T, store iap.EntitlementStore) {
	ctx := context.Background()

	require.NoError(t, store.SetEntitlement(ctx, "com.app.pro", true))
	require.NoError(t, store.SetEntitlement(ctx, "com.app.pro", false))

	owned, err := store.IsEntitled(ctx, "com.app.pro")
	require.NoError(t, err)
	require.False(t, owned)
}

func testEntitlementStore_IndependentProducts(t *testing.T, store iap.EntitlementStore) {
	ctx := context.Background()

	require.NoError(t, store.SetEntitlement(ctx, "com.app.pro", true))

	owned, err := store.IsEntitled(ctx, "com.app.themes")
	require.NoError(t, err)
	require.False(t, owned)

	require.NoError(t, store.SetEntitlement(ctx, "com.app.themes", true))

	for _, productID := range []string{"com.app.pro", "com.app.themes"} {
		owned, err := store.IsEntitled(ctx, productID)
		require.NoError(t, err)
		require.True(t, owned, productID)
	}
}

func testEntitlementStore_EmptyProduct(t *testing.T, store iap.EntitlementStore) {
	require.ErrorIs(t, store.SetEntitlement(context.Background(), "", true), iap.ErrEmptyProduct)
}
