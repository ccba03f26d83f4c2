package iap

// PaymentQueue is the platform payment service the controller delegates to.
//
// Callbacks are delivered asynchronously on a goroutine owned by the queue.
type PaymentQueue interface {
	// CanMakePayments reports whether purchases are allowed for the current
	// device and account.
	CanMakePayments() bool

	// RequestProducts resolves a set of product identifiers. Exactly one of the
	// handler's methods is called once the lookup completes.
	RequestProducts(productIDs []string, h ProductsHandler)

	// AddPayment submits a payment. The outcome is delivered to observers as a
	// transaction update.
	AddPayment(p *Payment)

	// RestoreCompletedTransactions replays all previously completed purchases to
	// observers as restored transactions.
	RestoreCompletedTransactions()

	AddObserver(o TransactionObserver)
	RemoveObserver(o TransactionObserver)

	// FinishTransaction releases a transaction in a terminal state from the
	// queue. Unfinished transactions are redelivered.
	FinishTransaction(tx *Transaction) error
}

type ProductsHandler interface {
	OnProductsResponse(resp *ProductsResponse)
	OnProductsRequestFailed(err error)
}

type TransactionObserver interface {
	// OnTransactionsUpdated delivers a batch of transactions, in order.
	OnTransactionsUpdated(txns []*Transaction)

	// OnRestoreFailed is called when a restore could not be started or
	// completed. It is not called for individual transaction failures.
	OnRestoreFailed(err error)
}
