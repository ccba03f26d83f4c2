package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/code-payments/flipchat-iap/iap"
)

var ErrPaymentsDisabled = errors.New("payments are disabled for this account")

// Outcome decides how a submitted payment resolves once it leaves the
// purchasing state.
type Outcome func(p *iap.Payment) (iap.TransactionState, error)

// Queue is an in-memory iap.PaymentQueue. It behaves like a platform sandbox:
// payments succeed unless an Outcome says otherwise, terminal transactions
// stay queued until finished, and finished purchases can be restored.
//
// All callbacks run in order on a single goroutine owned by the queue.
type Queue struct {
	log *zap.Logger

	mu              sync.Mutex
	catalog         map[string]*iap.Product
	canMakePayments bool
	outcome         Outcome
	catalogErr      error
	restoreErr      error
	observers       []iap.TransactionObserver
	pending         []*iap.Transaction
	history         []*iap.Transaction
	payments        []*iap.Payment
	finished        map[string]int

	tasksMu   sync.Mutex
	tasks     []func()
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewQueue(log *zap.Logger, products ...*iap.Product) *Queue {
	q := &Queue{
		log:             log,
		catalog:         make(map[string]*iap.Product),
		canMakePayments: true,
		finished:        make(map[string]int),
		wake:            make(chan struct{}, 1),
		done:            make(chan struct{}),
	}
	for _, p := range products {
		q.catalog[p.ID] = p.Clone()
	}

	go q.run()

	return q
}

// Close stops callback delivery. Queued callbacks that have not run are dropped.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

func (q *Queue) CanMakePayments() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.canMakePayments
}

func (q *Queue) RequestProducts(productIDs []string, h iap.ProductsHandler) {
	requested := append([]string(nil), productIDs...)

	q.enqueue(func() {
		q.mu.Lock()
		err := q.catalogErr
		resp := &iap.ProductsResponse{}
		if err == nil {
			seen := make(map[string]struct{})
			for _, id := range requested {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}

				if p, ok := q.catalog[id]; ok {
					resp.Products = append(resp.Products, p.Clone())
				} else {
					resp.InvalidProductIDs = append(resp.InvalidProductIDs, id)
				}
			}
		}
		q.mu.Unlock()

		if err != nil {
			h.OnProductsRequestFailed(err)
			return
		}
		h.OnProductsResponse(resp)
	})
}

func (q *Queue) AddPayment(p *iap.Payment) {
	payment := *p

	q.mu.Lock()
	q.payments = append(q.payments, &payment)
	tx := &iap.Transaction{
		ID:      uuid.NewString(),
		Payment: &payment,
		State:   iap.StatePurchasing,
		Date:    time.Now(),
	}
	q.pending = append(q.pending, tx)
	allowed := q.canMakePayments
	outcome := q.outcome
	q.mu.Unlock()

	q.log.Debug("Payment added", zap.String("transaction_id", tx.ID), zap.String("product_id", payment.ProductID))

	q.deliver(tx.Clone())

	state, err := iap.StatePurchased, error(nil)
	if !allowed {
		state, err = iap.StateFailed, ErrPaymentsDisabled
	} else if outcome != nil {
		state, err = outcome(&payment)
	}

	// Purchasing is the only state the outcome can leave unchanged.
	if state != iap.StatePurchasing {
		_ = q.Resolve(tx.ID, state, err)
	}
}

// Resolve moves an unfinished transaction to a new state and delivers it to
// observers. It is how deferred payments are approved or declined.
func (q *Queue) Resolve(txID string, state iap.TransactionState, err error) error {
	q.mu.Lock()
	tx := q.findPending(txID)
	if tx == nil {
		q.mu.Unlock()
		return iap.ErrUnknownTxn
	}
	tx.State = state
	tx.Error = err
	tx.Date = time.Now()
	delivered := tx.Clone()
	q.mu.Unlock()

	q.deliver(delivered)
	return nil
}

func (q *Queue) RestoreCompletedTransactions() {
	q.mu.Lock()
	if err := q.restoreErr; err != nil {
		q.restoreErr = nil
		q.mu.Unlock()

		q.enqueue(func() {
			for _, o := range q.snapshotObservers() {
				o.OnRestoreFailed(err)
			}
		})
		return
	}

	restored := make([]*iap.Transaction, 0, len(q.history))
	for _, original := range q.history {
		tx := &iap.Transaction{
			ID:       uuid.NewString(),
			Payment:  original.Clone().Payment,
			State:    iap.StateRestored,
			Date:     time.Now(),
			Original: original.Clone(),
		}
		q.pending = append(q.pending, tx)
		restored = append(restored, tx.Clone())
	}
	q.mu.Unlock()

	if len(restored) > 0 {
		q.deliver(restored...)
	}
}

// AddObserver registers an observer. Unfinished transactions are delivered
// to it immediately, the same way a relaunched app sees them.
func (q *Queue) AddObserver(o iap.TransactionObserver) {
	q.mu.Lock()
	q.observers = append(q.observers, o)
	unfinished := q.clonePending()
	q.mu.Unlock()

	if len(unfinished) == 0 {
		return
	}

	q.enqueue(func() {
		if q.isObserving(o) {
			o.OnTransactionsUpdated(unfinished)
		}
	})
}

func (q *Queue) RemoveObserver(o iap.TransactionObserver) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, existing := range q.observers {
		if existing == o {
			q.observers = append(q.observers[:i], q.observers[i+1:]...)
			return
		}
	}
}

func (q *Queue) FinishTransaction(tx *iap.Transaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, pending := range q.pending {
		if pending.ID != tx.ID {
			continue
		}
		if !pending.State.IsTerminal() {
			return iap.ErrInvalidState
		}

		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		q.finished[pending.ID]++
		if pending.State == iap.StatePurchased {
			q.history = append(q.history, pending)
		}
		return nil
	}

	if _, ok := q.finished[tx.ID]; ok {
		q.finished[tx.ID]++
		return nil
	}
	return iap.ErrUnknownTxn
}

// Redeliver sends every unfinished transaction to all observers again.
func (q *Queue) Redeliver() {
	q.mu.Lock()
	unfinished := q.clonePending()
	q.mu.Unlock()

	if len(unfinished) > 0 {
		q.deliver(unfinished...)
	}
}

// Inject delivers transactions as they are given, queueing any that are not
// already pending. It simulates updates the queue did not originate, such as
// purchases made on another device.
func (q *Queue) Inject(txns ...*iap.Transaction) {
	q.mu.Lock()
	delivered := make([]*iap.Transaction, 0, len(txns))
	for _, tx := range txns {
		if q.findPending(tx.ID) == nil {
			q.pending = append(q.pending, tx.Clone())
		}
		delivered = append(delivered, tx.Clone())
	}
	q.mu.Unlock()

	q.deliver(delivered...)
}

// RecordPurchase adds a finished purchase to the account history, to be
// replayed by the next restore.
func (q *Queue) RecordPurchase(productID string) *iap.Transaction {
	tx := &iap.Transaction{
		ID:      uuid.NewString(),
		Payment: &iap.Payment{ProductID: productID, Quantity: 1},
		State:   iap.StatePurchased,
		Date:    time.Now(),
	}

	q.mu.Lock()
	q.history = append(q.history, tx)
	q.mu.Unlock()

	return tx.Clone()
}

// SetCatalog replaces the products the queue resolves.
func (q *Queue) SetCatalog(products ...*iap.Product) {
	catalog := make(map[string]*iap.Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p.Clone()
	}

	q.mu.Lock()
	q.catalog = catalog
	q.mu.Unlock()
}

func (q *Queue) SetCanMakePayments(allowed bool) {
	q.mu.Lock()
	q.canMakePayments = allowed
	q.mu.Unlock()
}

func (q *Queue) SetOutcome(outcome Outcome) {
	q.mu.Lock()
	q.outcome = outcome
	q.mu.Unlock()
}

// SetCatalogError makes product requests fail with err until it is cleared
// with nil.
func (q *Queue) SetCatalogError(err error) {
	q.mu.Lock()
	q.catalogErr = err
	q.mu.Unlock()
}

// FailNextRestore makes the next restore fail with err.
func (q *Queue) FailNextRestore(err error) {
	q.mu.Lock()
	q.restoreErr = err
	q.mu.Unlock()
}

// Payments returns every payment submitted so far.
func (q *Queue) Payments() []*iap.Payment {
	q.mu.Lock()
	defer q.mu.Unlock()

	payments := make([]*iap.Payment, len(q.payments))
	for i, p := range q.payments {
		payment := *p
		payments[i] = &payment
	}
	return payments
}

// Pending returns the unfinished transactions.
func (q *Queue) Pending() []*iap.Transaction {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.clonePending()
}

// FinishCount returns how many times a transaction was finished.
func (q *Queue) FinishCount(txID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.finished[txID]
}

// Sync blocks until every callback queued before the call has run.
func (q *Queue) Sync() {
	ch := make(chan struct{})
	q.enqueue(func() { close(ch) })

	select {
	case <-ch:
	case <-q.done:
	}
}

func (q *Queue) deliver(txns ...*iap.Transaction) {
	q.enqueue(func() {
		for _, o := range q.snapshotObservers() {
			batch := make([]*iap.Transaction, len(txns))
			for i, tx := range txns {
				batch[i] = tx.Clone()
			}
			o.OnTransactionsUpdated(batch)
		}
	})
}

func (q *Queue) enqueue(task func()) {
	q.tasksMu.Lock()
	q.tasks = append(q.tasks, task)
	q.tasksMu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	for {
		select {
		case <-q.done:
			return
		case <-q.wake:
		}

		for {
			q.tasksMu.Lock()
			tasks := q.tasks
			q.tasks = nil
			q.tasksMu.Unlock()

			if len(tasks) == 0 {
				break
			}

			for _, task := range tasks {
				select {
				case <-q.done:
					return
				default:
				}
				task()
			}
		}
	}
}

func (q *Queue) snapshotObservers() []iap.TransactionObserver {
	q.mu.Lock()
	defer q.mu.Unlock()

	observers := make([]iap.TransactionObserver, len(q.observers))
	copy(observers, q.observers)
	return observers
}

func (q *Queue) isObserving(o iap.TransactionObserver) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, existing := range q.observers {
		if existing == o {
			return true
		}
	}
	return false
}

func (q *Queue) findPending(txID string) *iap.Transaction {
	for _, tx := range q.pending {
		if tx.ID == txID {
			return tx
		}
	}
	return nil
}

func (q *Queue) clonePending() []*iap.Transaction {
	cloned := make([]*iap.Transaction, len(q.pending))
	for i, tx := range q.pending {
		cloned[i] = tx.Clone()
	}
	return cloned
}
