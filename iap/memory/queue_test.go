package memory

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/code-payments/flipchat-iap/iap"
	"github.com/code-payments/flipchat-iap/iap/tests"
)

func newTestQueue(t *testing.T) *Queue {
	q := NewQueue(
		zap.Must(zap.NewDevelopment()),
		&iap.Product{ID: "com.app.pro", Price: decimal.NewFromInt(5), CurrencyCode: "USD"},
	)
	t.Cleanup(q.Close)
	return q
}

func TestQueue_RequestProducts(t *testing.T) {
	q := newTestQueue(t)

	h := &tests.RecordingProductsHandler{}
	q.RequestProducts([]string{"com.app.pro", "com.app.unknown", "com.app.pro"}, h)
	q.Sync()

	resp, calls, err := h.Result()
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Len(t, resp.Products, 1)
	require.Equal(t, "com.app.pro", resp.Products[0].ID)
	require.Equal(t, []string{"com.app.unknown"}, resp.InvalidProductIDs)
}

func TestQueue_RequestProductsFailure(t *testing.T) {
	q := newTestQueue(t)
	q.SetCatalogError(errors.New("offline"))

	h := &tests.RecordingProductsHandler{}
	q.RequestProducts([]string{"com.app.pro"}, h)
	q.Sync()

	resp, calls, err := h.Result()
	require.EqualError(t, err, "offline")
	require.Nil(t, resp)
	require.Equal(t, 1, calls)
}

func TestQueue_PaymentLifecycle(t *testing.T) {
	q := newTestQueue(t)

	observer := &tests.RecordingObserver{}
	q.AddObserver(observer)

	q.AddPayment(&iap.Payment{ProductID: "com.app.pro", Quantity: 1})
	q.Sync()

	batches := observer.Batches()
	require.Len(t, batches, 2)
	require.Equal(t, iap.StatePurchasing, batches[0][0].State)
	require.Equal(t, iap.StatePurchased, batches[1][0].State)
	require.Equal(t, batches[0][0].ID, batches[1][0].ID)

	tx := batches[1][0]
	require.Len(t, q.Pending(), 1)
	require.NoError(t, q.FinishTransaction(tx))
	require.Empty(t, q.Pending())
	require.Equal(t, 1, q.FinishCount(tx.ID))

	// Finished purchases are what a restore replays.
	q.RestoreCompletedTransactions()
	q.Sync()

	restored := observer.Transactions(iap.StateRestored)
	require.Len(t, restored, 1)
	require.NotEqual(t, tx.ID, restored[0].ID)
	require.Equal(t, tx.ID, restored[0].Original.ID)
	require.Equal(t, "com.app.pro", restored[0].Original.ProductID())
}

func TestQueue_FinishTransactionErrors(t *testing.T) {
	q := newTestQueue(t)
	q.SetOutcome(func(p *iap.Payment) (iap.TransactionState, error) {
		return iap.StateDeferred, nil
	})

	require.ErrorIs(t, q.FinishTransaction(&iap.Transaction{ID: "missing"}), iap.ErrUnknownTxn)

	q.AddPayment(&iap.Payment{ProductID: "com.app.pro", Quantity: 1})
	q.Sync()

	pending := q.Pending()
	require.Len(t, pending, 1)
	require.ErrorIs(t, q.FinishTransaction(pending[0]), iap.ErrInvalidState)

	require.ErrorIs(t, q.Resolve("missing", iap.StatePurchased, nil), iap.ErrUnknownTxn)
}

func TestQueue_RestoreFailure(t *testing.T) {
	q := newTestQueue(t)

	observer := &tests.RecordingObserver{}
	q.AddObserver(observer)

	q.FailNextRestore(errors.New("not signed in"))
	q.RestoreCompletedTransactions()
	q.Sync()

	require.Len(t, observer.RestoreFailures(), 1)
	require.Empty(t, observer.Batches())

	// Only the next restore fails.
	q.RestoreCompletedTransactions()
	q.Sync()
	require.Len(t, observer.RestoreFailures(), 1)
}

func TestQueue_RemoveObserver(t *testing.T) {
	q := newTestQueue(t)

	observer := &tests.RecordingObserver{}
	q.AddObserver(observer)
	q.RemoveObserver(observer)

	q.AddPayment(&iap.Payment{ProductID: "com.app.pro", Quantity: 1})
	q.Sync()

	require.Empty(t, observer.Batches())
}

func TestQueue_NewObserverSeesUnfinished(t *testing.T) {
	q := newTestQueue(t)

	q.AddPayment(&iap.Payment{ProductID: "com.app.pro", Quantity: 1})
	q.Sync()

	observer := &tests.RecordingObserver{}
	q.AddObserver(observer)
	q.Sync()

	batches := observer.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	require.Equal(t, iap.StatePurchased, batches[0][0].State)
}

func TestQueue_CanMakePayments(t *testing.T) {
	q := newTestQueue(t)
	require.True(t, q.CanMakePayments())

	q.SetCanMakePayments(false)
	require.False(t, q.CanMakePayments())

	observer := &tests.RecordingObserver{}
	q.AddObserver(observer)

	q.AddPayment(&iap.Payment{ProductID: "com.app.pro", Quantity: 1})
	q.Sync()

	failed := observer.Transactions(iap.StateFailed)
	require.Len(t, failed, 1)
	require.ErrorIs(t, failed[0].Error, ErrPaymentsDisabled)
}
