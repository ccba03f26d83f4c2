package main

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	productIDsEnv   = "IAP_PRODUCT_IDS"
	productPriceEnv = "IAP_PRODUCT_PRICE"
	ownerIDEnv      = "IAP_OWNER_ID"
	databaseUrlEnv  = "DATABASE_URL"
	cacheTTLEnv     = "IAP_CACHE_TTL"
	devLoggingEnv   = "IAP_DEV_LOGGING"

	defaultOwnerID  = "local"
	defaultPrice    = "0.99"
	defaultCacheTTL = time.Minute
)

type config struct {
	productIDs   []string
	productPrice decimal.Decimal
	ownerID      string
	databaseUrl  string
	cacheTTL     time.Duration
	devLogging   bool
}

// loadConfig reads the environment, after loading a .env file from the
// working directory if one exists.
func loadConfig() (*config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env")
	}

	cfg := &config{
		ownerID:     defaultOwnerID,
		databaseUrl: os.Getenv(databaseUrlEnv),
		cacheTTL:    defaultCacheTTL,
		devLogging:  os.Getenv(devLoggingEnv) == "true",
	}

	for _, id := range strings.Split(os.Getenv(productIDsEnv), ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.productIDs = append(cfg.productIDs, id)
		}
	}
	if len(cfg.productIDs) == 0 {
		return nil, errors.Errorf("%s must list at least one product identifier", productIDsEnv)
	}

	price := os.Getenv(productPriceEnv)
	if price == "" {
		price = defaultPrice
	}
	var err error
	cfg.productPrice, err = decimal.NewFromString(price)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s", productPriceEnv)
	}

	if owner := os.Getenv(ownerIDEnv); owner != "" {
		cfg.ownerID = owner
	}

	if ttl := os.Getenv(cacheTTLEnv); ttl != "" {
		cfg.cacheTTL, err = time.ParseDuration(ttl)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", cacheTTLEnv)
		}
	}

	return cfg, nil
}
