package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/code-payments/flipchat-iap/iap"
	"github.com/code-payments/flipchat-iap/iap/cache"
	"github.com/code-payments/flipchat-iap/iap/memory"
	"github.com/code-payments/flipchat-iap/iap/postgres"

	_ "github.com/jackc/pgx/v4/stdlib"
)

// purchasectl drives a purchase controller against the in-memory sandbox
// queue, persisting entitlements to memory or postgres.
func main() {
	root := &cobra.Command{
		Use:           "purchasectl",
		Short:         "Run purchases and restores against the sandbox payment queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "products",
			Short: "List the resolved product catalog",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(func(s *session) error {
					for _, p := range s.controller.Products() {
						fmt.Printf("%s\t%s %s\n", p.ID, p.Price.StringFixed(2), p.CurrencyCode)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "buy <product-id>",
			Short: "Buy a product from the catalog",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(func(s *session) error {
					if !s.controller.CanMakePayments() {
						return memory.ErrPaymentsDisabled
					}
					s.controller.BuyItem(args[0])
					s.queue.Sync()
					return s.printEntitlements()
				})
			},
		},
		&cobra.Command{
			Use:   "restore",
			Short: "Restore purchases recorded for the owner",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(func(s *session) error {
					// The sandbox has no account history of its own, so replay
					// whatever the entitlement store already holds.
					for _, id := range s.cfg.productIDs {
						owned, err := s.entitlements.IsEntitled(context.Background(), id)
						if err != nil {
							return err
						}
						if owned {
							s.queue.RecordPurchase(id)
						}
					}

					s.controller.RestorePurchases()
					s.queue.Sync()
					return s.printEntitlements()
				})
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type session struct {
	cfg          *config
	log          *zap.Logger
	queue        *memory.Queue
	entitlements iap.EntitlementStore
	controller   *iap.Controller
}

func run(f func(s *session) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	entitlements, closeStore, err := newEntitlementStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	products := make([]*iap.Product, 0, len(cfg.productIDs))
	for _, id := range cfg.productIDs {
		products = append(products, &iap.Product{
			ID:           id,
			Title:        id,
			Price:        cfg.productPrice,
			CurrencyCode: "USD",
		})
	}

	queue := memory.NewQueue(log.Named("queue"), products...)
	defer queue.Close()

	controller, err := iap.NewController(log.Named("controller"), queue, entitlements, cfg.productIDs)
	if err != nil {
		return err
	}
	defer controller.Close()

	controller.SetOnPurchase(func(productID string) {
		log.Info("Purchased", zap.String("product_id", productID))
	})
	controller.SetOnRestore(func(productID string) {
		log.Info("Restored", zap.String("product_id", productID))
	})
	controller.SetOnFail(func(productID string) {
		log.Warn("Purchase failed", zap.String("product_id", productID))
	})
	controller.SetOnCancel(func() {
		log.Warn("Restore did not complete")
	})

	// Wait for the catalog before running the command.
	queue.Sync()

	return f(&session{
		cfg:          cfg,
		log:          log,
		queue:        queue,
		entitlements: entitlements,
		controller:   controller,
	})
}

func (s *session) printEntitlements() error {
	for _, id := range s.cfg.productIDs {
		owned, err := s.entitlements.IsEntitled(context.Background(), id)
		if err != nil {
			return err
		}
		fmt.Printf("%s\towned=%t\n", id, owned)
	}
	return nil
}

func newLogger(cfg *config) (*zap.Logger, error) {
	if cfg.devLogging {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newEntitlementStore(cfg *config) (iap.EntitlementStore, func(), error) {
	if cfg.databaseUrl == "" {
		return memory.NewInMemory(), func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.databaseUrl)
	if err != nil {
		return nil, nil, err
	}

	if err := postgres.InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, nil, err
	}

	store := postgres.NewInPostgres(db, []byte(cfg.ownerID))
	return cache.NewInCache(store, cfg.cacheTTL), func() { db.Close() }, nil
}
