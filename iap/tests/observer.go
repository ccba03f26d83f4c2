package tests

import (
	"sync"

	"github.com/code-payments/flipchat-iap/iap"
)

// RecordingObserver captures everything a payment queue delivers.
type RecordingObserver struct {
	mu              sync.Mutex
	batches         [][]*iap.Transaction
	restoreFailures []error
}

func (o *RecordingObserver) OnTransactionsUpdated(txns []*iap.Transaction) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.batches = append(o.batches, txns)
}

func (o *RecordingObserver) OnRestoreFailed(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.restoreFailures = append(o.restoreFailures, err)
}

func (o *RecordingObserver) Batches() [][]*iap.Transaction {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([][]*iap.Transaction(nil), o.batches...)
}

// Transactions returns every delivered transaction with the given state.
func (o *RecordingObserver) Transactions(state iap.TransactionState) []*iap.Transaction {
	o.mu.Lock()
	defer o.mu.Unlock()

	var txns []*iap.Transaction
	for _, batch := range o.batches {
		for _, tx := range batch {
			if tx.State == state {
				txns = append(txns, tx)
			}
		}
	}
	return txns
}

func (o *RecordingObserver) RestoreFailures() []error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]error(nil), o.restoreFailures...)
}

// RecordingProductsHandler captures the result of a product request.
type RecordingProductsHandler struct {
	mu       sync.Mutex
	response *iap.ProductsResponse
	err      error
	calls    int
}

func (h *RecordingProductsHandler) OnProductsResponse(resp *iap.ProductsResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.response = resp
	h.calls++
}

func (h *RecordingProductsHandler) OnProductsRequestFailed(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.err = err
	h.calls++
}

func (h *RecordingProductsHandler) Result() (*iap.ProductsResponse, int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.response, h.calls, h.err
}
