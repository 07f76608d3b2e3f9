package tenancyinfra

import (
	"context"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/jmoiron/sqlx"
)

// centralSchema son las tablas del registro; es lo único que vive fuera de
// las tiendas
var centralSchema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL DEFAULT '',
		logo       TEXT,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		data       TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS domains (
		domain     TEXT PRIMARY KEY,
		tenant_id  TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS domains_tenant_id_idx ON domains (tenant_id)`,
}

// MigrateCentral crea las tablas del registro si no existen
func MigrateCentral(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range centralSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errx.Wrap(err, "failed to migrate central schema", errx.TypeInternal)
		}
	}
	return nil
}
