package shopinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/jmoiron/sqlx"
)

type migration struct {
	version    int
	statements []string
}

// tenantMigrations es el esquema de cada tienda. Las versiones nunca se
// reescriben; los cambios van en una migración nueva.
var tenantMigrations = []migration{
	{version: 1, statements: []string{
		`CREATE TABLE customers (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
			created_at    TIMESTAMP NOT NULL,
			updated_at    TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE categories (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			slug        TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			is_active   BOOLEAN NOT NULL DEFAULT TRUE,
			created_at  TIMESTAMP NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE products (
			id          TEXT PRIMARY KEY,
			category_id TEXT REFERENCES categories(id) ON DELETE SET NULL,
			name        TEXT NOT NULL,
			slug        TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			price_cents BIGINT NOT NULL,
			stock       INTEGER NOT NULL DEFAULT 0,
			is_active   BOOLEAN NOT NULL DEFAULT TRUE,
			created_at  TIMESTAMP NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX products_category_id_idx ON products (category_id)`,
	}},
	{version: 2, statements: []string{
		`CREATE TABLE carts (
			id          TEXT PRIMARY KEY,
			session_id  TEXT UNIQUE,
			customer_id TEXT UNIQUE REFERENCES customers(id) ON DELETE CASCADE,
			created_at  TIMESTAMP NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE cart_items (
			id         TEXT PRIMARY KEY,
			cart_id    TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			quantity   INTEGER NOT NULL,
			UNIQUE (cart_id, product_id)
		)`,
	}},
	{version: 3, statements: []string{
		`CREATE TABLE orders (
			id               TEXT PRIMARY KEY,
			number           TEXT NOT NULL UNIQUE,
			customer_id      TEXT REFERENCES customers(id) ON DELETE SET NULL,
			status           TEXT NOT NULL,
			customer_name    TEXT NOT NULL,
			customer_email   TEXT NOT NULL,
			shipping_address TEXT NOT NULL,
			total_cents      BIGINT NOT NULL,
			notes            TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMP NOT NULL,
			updated_at       TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE order_items (
			id               TEXT PRIMARY KEY,
			order_id         TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id       TEXT REFERENCES products(id) ON DELETE SET NULL,
			product_name     TEXT NOT NULL,
			unit_price_cents BIGINT NOT NULL,
			quantity         INTEGER NOT NULL
		)`,
		`CREATE INDEX order_items_order_id_idx ON order_items (order_id)`,
	}},
}

// MigrateTenant aplica las migraciones pendientes en la tienda activa y
// retorna cuántas aplicó
func MigrateTenant(ctx context.Context) (int, error) {
	db, err := scope.DB(ctx)
	if err != nil {
		return 0, err
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return 0, errx.Wrap(err, "failed to create schema_migrations", errx.TypeInternal)
	}

	var applied []int
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return 0, errx.Wrap(err, "failed to read schema_migrations", errx.TypeInternal)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	count := 0
	for _, m := range tenantMigrations {
		if done[m.version] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// SchemaVersion retorna la última migración aplicada en la tienda activa
func SchemaVersion(ctx context.Context) (int, error) {
	db, err := scope.DB(ctx)
	if err != nil {
		return 0, err
	}
	var version int
	if err := db.GetContext(ctx, &version, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return 0, errx.Wrap(err, "failed to read schema version", errx.TypeInternal)
	}
	return version, nil
}

func apply(ctx context.Context, db *sqlx.DB, m migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin migration", errx.TypeInternal)
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errx.Wrap(err, "failed to apply tenant migration", errx.TypeInternal).
				WithDetail("version", m.version)
		}
	}
	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`),
		m.version, time.Now().UTC()); err != nil {
		return errx.Wrap(err, "failed to record tenant migration", errx.TypeInternal).
			WithDetail("version", m.version)
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit tenant migration", errx.TypeInternal)
	}
	return nil
}
