package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

// SQLiteCatalog reads coupons from a sqlite database.
type SQLiteCatalog struct {
	db *sql.DB
}

func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func (c *SQLiteCatalog) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (c *SQLiteCatalog) Lookup(ctx context.Context, code string) (domain.Coupon, error) {
	query := `
		SELECT code, discount, min_purchase, free_shipping, expires_at
		FROM coupons
		WHERE code = $1 AND active = 1
	`

	var (
		cp        domain.Coupon
		freeShip  int
		expiresAt sql.NullString
	)
	err := c.db.QueryRowContext(ctx, query, domain.NormalizeCouponCode(code)).Scan(
		&cp.Code,
		&cp.Discount,
		&cp.MinPurchase,
		&freeShip,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Coupon{}, ErrNotFound
	}
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("query coupon: %w", err)
	}

	cp.FreeShipping = freeShip != 0
	if expiresAt.Valid && expiresAt.String != "" {
		t, errParse := time.Parse(time.RFC3339, expiresAt.String)
		if errParse != nil {
			return domain.Coupon{}, fmt.Errorf("parse coupon expiry %q: %w", expiresAt.String, errParse)
		}
		cp.ExpiresAt = &t
	}

	return cp, nil
}

// Upsert adds or replaces a coupon.
func (c *SQLiteCatalog) Upsert(ctx context.Context, cp domain.Coupon) error {
	var expires sql.NullString
	if cp.ExpiresAt != nil {
		expires = sql.NullString{String: cp.ExpiresAt.UTC().Format(time.RFC3339), Valid: true}
	}
	freeShip := 0
	if cp.FreeShipping {
		freeShip = 1
	}

	query := `
		INSERT INTO coupons (code, discount, min_purchase, free_shipping, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT(code) DO UPDATE SET
			discount = excluded.discount,
			min_purchase = excluded.min_purchase,
			free_shipping = excluded.free_shipping,
			expires_at = excluded.expires_at,
			active = 1
	`
	_, err := c.db.ExecContext(ctx, query,
		domain.NormalizeCouponCode(cp.Code),
		cp.Discount.String(),
		cp.MinPurchase.String(),
		freeShip,
		expires,
	)
	if err != nil {
		return fmt.Errorf("upsert coupon: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
