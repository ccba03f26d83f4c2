package iap

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry resolved by the payment queue.
type Product struct {
	ID string

	// Display metadata, opaque to the controller.
	Title        string
	Description  string
	Price        decimal.Decimal
	CurrencyCode string
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	cloned := *p
	return &cloned
}

// Payment is a request to buy a product from the catalog.
type Payment struct {
	ProductID string
	Quantity  int
}

func NewPayment(product *Product) *Payment {
	return &Payment{
		ProductID: product.ID,
		Quantity:  1,
	}
}

type TransactionState uint8

const (
	StatePurchasing TransactionState = iota
	StatePurchased
	StateFailed
	StateRestored
	StateDeferred
)

func (s TransactionState) String() string {
	switch s {
	case StatePurchasing:
		return "purchasing"
	case StatePurchased:
		return "purchased"
	case StateFailed:
		return "failed"
	case StateRestored:
		return "restored"
	case StateDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether a transaction in this state must be finished.
func (s TransactionState) IsTerminal() bool {
	switch s {
	case StatePurchased, StateFailed, StateRestored:
		return true
	default:
		return false
	}
}

type Transaction struct {
	ID      string
	Payment *Payment
	State   TransactionState
	Date    time.Time

	// Original is the purchase a restored transaction replays.
	Original *Transaction

	// Error describes why a failed transaction failed.
	Error error
}

// ProductID returns the identifier of the product the transaction pays for,
// or an empty string if the transaction carries no payment.
func (t *Transaction) ProductID() string {
	if t == nil || t.Payment == nil {
		return ""
	}
	return t.Payment.ProductID
}

func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}

	cloned := *t
	if t.Payment != nil {
		payment := *t.Payment
		cloned.Payment = &payment
	}
	cloned.Original = t.Original.Clone()
	return &cloned
}

type ProductsResponse struct {
	Products []*Product

	// InvalidProductIDs lists requested identifiers the queue does not know.
	InvalidProductIDs []string
}
