package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

const entitlementTable = "iap_entitlements"

// Schema creates the tables used by the entitlement store.
const Schema = `
CREATE TABLE IF NOT EXISTS ` + entitlementTable + ` (
	"owner"     TEXT        NOT NULL,
	"productId" TEXT        NOT NULL,
	"entitled"  BOOLEAN     NOT NULL,
	"createdAt" TIMESTAMPTZ NOT NULL,
	"updatedAt" TIMESTAMPTZ NOT NULL,
	PRIMARY KEY ("owner", "productId")
)`

// entitlementModel maps to the iap_entitlements table
type entitlementModel struct {
	Owner     string    `db:"owner"`
	ProductID string    `db:"productId"`
	Entitled  bool      `db:"entitled"`
	CreatedAt time.Time `db:"createdAt"`
	UpdatedAt time.Time `db:"updatedAt"`
}

func InitSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return errors.Wrap(err, "failed to create entitlement schema")
}
