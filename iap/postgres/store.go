package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	pg "github.com/code-payments/flipchat-iap/database/postgres"
	"github.com/code-payments/flipchat-iap/iap"
)

type store struct {
	db    *sqlx.DB
	owner string
}

// NewInPostgres returns an entitlement store for a single owner, such as an
// account or app install, backed by the iap_entitlements table.
func NewInPostgres(db *sql.DB, owner []byte) iap.EntitlementStore {
	return &store{
		db:    sqlx.NewDb(db, "pgx"),
		owner: pg.OwnerKey(owner),
	}
}

func (s *store) reset() {
	_, err := s.db.Exec(`DELETE FROM `+entitlementTable+` WHERE "owner" = $1`, s.owner)
	if err != nil {
		panic(err)
	}
}

func (s *store) SetEntitlement(ctx context.Context, productID string, owned bool) error {
	if productID == "" {
		return iap.ErrEmptyProduct
	}

	now := time.Now()
	m := &entitlementModel{
		Owner:     s.owner,
		ProductID: productID,
		Entitled:  owned,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO `+entitlementTable+` ("owner", "productId", "entitled", "createdAt", "updatedAt")
		VALUES (:owner, :productId, :entitled, :createdAt, :updatedAt)
		ON CONFLICT ("owner", "productId") DO UPDATE SET "entitled" = EXCLUDED."entitled", "updatedAt" = EXCLUDED."updatedAt"
	`, m)
	return errors.Wrapf(err, "failed to set entitlement for %s", productID)
}

func (s *store) IsEntitled(ctx context.Context, productID string) (bool, error) {
	var m entitlementModel
	query := `SELECT "owner", "productId", "entitled", "createdAt", "updatedAt" FROM ` + entitlementTable + ` WHERE "owner" = $1 AND "productId" = $2`
	err := s.db.GetContext(ctx, &m, query, s.owner, productID)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, errors.Wrapf(err, "failed to get entitlement for %s", productID)
	}

	return m.Entitled, nil
}
