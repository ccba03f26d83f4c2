package iap

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const persistTimeout = 5 * time.Second

// Controller mediates purchases between the application and a PaymentQueue.
//
// It registers itself as the queue's transaction observer on construction and
// must be closed to deregister. Outcomes are reported through single-slot
// handlers; setting a handler replaces the previous one.
type Controller struct {
	log          *zap.Logger
	queue        PaymentQueue
	entitlements EntitlementStore
	productIDs   []string

	mu         sync.RWMutex
	closed     bool
	products   []*Product
	onPurchase func(productID string)
	onRestore  func(productID string)
	onFail     func(productID string)
	onCancel   func()
}

func NewController(
	log *zap.Logger,
	queue PaymentQueue,
	entitlements EntitlementStore,
	productIDs []string,
) (*Controller, error) {
	if len(productIDs) == 0 {
		return nil, ErrNoProducts
	}

	c := &Controller{
		log:          log,
		queue:        queue,
		entitlements: entitlements,
		productIDs:   append([]string(nil), productIDs...),
	}

	queue.AddObserver(c)
	queue.RequestProducts(c.productIDs, c)

	return c, nil
}

// Close deregisters the controller from the payment queue. Callbacks that
// arrive afterwards are dropped.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.queue.RemoveObserver(c)
	return nil
}

// CanMakePayments reports whether the payment queue allows purchases.
func (c *Controller) CanMakePayments() bool {
	return c.queue.CanMakePayments()
}

// BuyItem submits a payment for a product in the resolved catalog.
//
// Unknown products, and any product before the catalog has resolved, are
// ignored without notification. Callers should only offer products returned
// by Products.
func (c *Controller) BuyItem(productID string) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}

	var product *Product
	for _, p := range c.products {
		if p.ID == productID {
			product = p
			break
		}
	}
	c.mu.RUnlock()

	if product == nil {
		c.log.Debug("Ignoring purchase of product not in catalog", zap.String("product_id", productID))
		return
	}

	c.queue.AddPayment(NewPayment(product))
}

// RestorePurchases asks the queue to replay completed purchases. Each one is
// reported through the restore handler, and a restore that does not complete
// is reported through the cancel handler.
func (c *Controller) RestorePurchases() {
	if c.isClosed() {
		return
	}
	c.queue.RestoreCompletedTransactions()
}

// ReloadProducts requests the catalog again for the identifiers the
// controller was created with.
func (c *Controller) ReloadProducts() {
	if c.isClosed() {
		return
	}
	c.queue.RequestProducts(c.productIDs, c)
}

// Products returns the resolved catalog, or nil if it has not resolved yet.
func (c *Controller) Products() []*Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.products == nil {
		return nil
	}

	products := make([]*Product, len(c.products))
	for i, p := range c.products {
		products[i] = p.Clone()
	}
	return products
}

// SetOnPurchase sets the purchase handler, replacing any previous one.
func (c *Controller) SetOnPurchase(f func(productID string)) {
	c.mu.Lock()
	c.onPurchase = f
	c.mu.Unlock()
}

// SetOnRestore sets the restore handler, replacing any previous one.
func (c *Controller) SetOnRestore(f func(productID string)) {
	c.mu.Lock()
	c.onRestore = f
	c.mu.Unlock()
}

// SetOnFail sets the failure handler, replacing any previous one.
func (c *Controller) SetOnFail(f func(productID string)) {
	c.mu.Lock()
	c.onFail = f
	c.mu.Unlock()
}

// SetOnCancel sets the handler called when a restore fails to complete,
// replacing any previous one.
func (c *Controller) SetOnCancel(f func()) {
	c.mu.Lock()
	c.onCancel = f
	c.mu.Unlock()
}

func (c *Controller) OnProductsResponse(resp *ProductsResponse) {
	if resp == nil {
		c.OnProductsRequestFailed(errors.New("empty products response"))
		return
	}

	products := make([]*Product, 0, len(resp.Products))
	for _, p := range resp.Products {
		products = append(products, p.Clone())
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.products = products
	c.mu.Unlock()

	c.log.Debug(
		"Resolved product catalog",
		zap.Int("products", len(products)),
		zap.Strings("invalid_product_ids", resp.InvalidProductIDs),
	)
}

func (c *Controller) OnProductsRequestFailed(err error) {
	c.log.Warn("Failed to resolve product catalog", zap.Error(err))
}

func (c *Controller) OnTransactionsUpdated(txns []*Transaction) {
	for _, tx := range txns {
		// A handler may close the controller part way through a batch.
		if c.isClosed() {
			return
		}

		switch tx.State {
		case StatePurchased:
			c.processPurchased(tx)
		case StateRestored:
			c.processRestored(tx)
		case StateFailed:
			c.processFailed(tx)
		case StateDeferred, StatePurchasing:
			// Still pending, the queue delivers it again once it moves on.
		}
	}
}

func (c *Controller) OnRestoreFailed(err error) {
	c.mu.RLock()
	closed, onCancel := c.closed, c.onCancel
	c.mu.RUnlock()

	if closed {
		return
	}

	c.log.Debug("Restore did not complete", zap.Error(err))

	if onCancel != nil {
		onCancel()
	}
}

func (c *Controller) processPurchased(tx *Transaction) {
	productID := tx.ProductID()
	log := c.log.With(
		zap.String("transaction_id", tx.ID),
		zap.String("product_id", productID),
	)

	// Nothing can be granted without a product, but the transaction must
	// still leave the queue.
	if productID == "" {
		log.Warn("Finishing purchased transaction without a product")
		c.finish(log, tx)
		return
	}

	if !c.persist(log, productID) {
		return
	}
	c.finish(log, tx)

	log.Debug("Purchase completed")

	if onPurchase := c.handler(func() func(string) { return c.onPurchase }); onPurchase != nil {
		onPurchase(productID)
	}
}

func (c *Controller) processRestored(tx *Transaction) {
	productID := tx.Original.ProductID()
	if productID == "" {
		return
	}

	log := c.log.With(
		zap.String("transaction_id", tx.ID),
		zap.String("original_transaction_id", tx.Original.ID),
		zap.String("product_id", productID),
	)

	if !c.persist(log, productID) {
		return
	}
	c.finish(log, tx)

	log.Debug("Purchase restored")

	if onRestore := c.handler(func() func(string) { return c.onRestore }); onRestore != nil {
		onRestore(productID)
	}
}

func (c *Controller) processFailed(tx *Transaction) {
	productID := tx.ProductID()
	log := c.log.With(
		zap.String("transaction_id", tx.ID),
		zap.String("product_id", productID),
	)

	c.finish(log, tx)

	log.Debug("Purchase failed", zap.Error(tx.Error))

	if onFail := c.handler(func() func(string) { return c.onFail }); onFail != nil {
		onFail(productID)
	}
}

// persist records ownership of productID. A transaction whose entitlement
// could not be written is left unfinished so the queue delivers it again.
func (c *Controller) persist(log *zap.Logger, productID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := c.entitlements.SetEntitlement(ctx, productID, true); err != nil {
		log.Warn("Failed to persist entitlement", zap.Error(err))
		return false
	}
	return true
}

func (c *Controller) finish(log *zap.Logger, tx *Transaction) {
	if err := c.queue.FinishTransaction(tx); err != nil {
		log.Warn("Failed to finish transaction", zap.Error(err))
	}
}

// handler returns the slot picked by get, or nil once the controller is closed.
func (c *Controller) handler(get func() func(string)) func(string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil
	}
	return get()
}

func (c *Controller) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
