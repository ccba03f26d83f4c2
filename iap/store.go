package iap

import (
	"context"
	"errors"
)

var (
	ErrNoProducts   = errors.New("at least one product identifier is required")
	ErrInvalidState = errors.New("transaction cannot be finished in its current state")
	ErrUnknownTxn   = errors.New("transaction not found")
	ErrEmptyProduct = errors.New("product identifier is empty")
)

// EntitlementStore persists whether the user owns a product.
type EntitlementStore interface {
	// SetEntitlement records ownership of a product.
	//
	// It is idempotent: setting the same value twice is the same as setting it once.
	SetEntitlement(ctx context.Context, productID string, owned bool) error

	// IsEntitled returns whether the user owns a product.
	//
	// Products that were never recorded are not owned, and no error is returned.
	IsEntitled(ctx context.Context, productID string) (bool, error)
}
