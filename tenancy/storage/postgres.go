package storage

import (
	"context"
	"errors"

	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresSchemaDriver keeps each tenant in its own schema of the central
// database. Tenant connections pin search_path to that schema, so unqualified
// table names never reach another tenant or the central tables.
type PostgresSchemaDriver struct {
	admin        *sqlx.DB
	baseDSN      string
	prefix       string
	maxOpenConns int
}

func NewPostgresSchemaDriver(admin *sqlx.DB, baseDSN, prefix string, maxOpenConns int) *PostgresSchemaDriver {
	return &PostgresSchemaDriver{
		admin:        admin,
		baseDSN:      baseDSN,
		prefix:       prefix,
		maxOpenConns: maxOpenConns,
	}
}

func (d *PostgresSchemaDriver) Name() string { return "postgres" }

// Schema is the schema name of the tenant.
func (d *PostgresSchemaDriver) Schema(id kernel.TenantID) string {
	return d.prefix + id.String()
}

func (d *PostgresSchemaDriver) CreateHandle(ctx context.Context, id kernel.TenantID) error {
	if err := tenancy.ValidateKey(id); err != nil {
		return err
	}

	_, err := d.admin.ExecContext(ctx, "CREATE SCHEMA "+pq.QuoteIdentifier(d.Schema(id)))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P06" {
			return tenancy.ErrProvisioningFailed(err).
				WithDetail("tenant_id", id.String()).
				WithDetail("reason", "storage already exists")
		}
		return tenancy.ErrProvisioningFailed(err).WithDetail("tenant_id", id.String())
	}
	return nil
}

func (d *PostgresSchemaDriver) DestroyHandle(ctx context.Context, id kernel.TenantID) error {
	_, err := d.admin.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+pq.QuoteIdentifier(d.Schema(id))+" CASCADE")
	if err != nil {
		return tenancy.ErrProvisioningFailed(err).
			WithDetail("tenant_id", id.String()).
			WithDetail("reason", "failed to drop schema")
	}
	return nil
}

func (d *PostgresSchemaDriver) Exists(ctx context.Context, id kernel.TenantID) (bool, error) {
	var exists bool
	err := d.admin.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		d.Schema(id))
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (d *PostgresSchemaDriver) Connect(ctx context.Context, id kernel.TenantID) (*sqlx.DB, error) {
	exists, err := d.Exists(ctx, id)
	if err != nil {
		return nil, tenancy.ErrProvisioningFailed(err).WithDetail("tenant_id", id.String())
	}
	if !exists {
		return nil, tenancy.ErrTenantNotFound().
			WithDetail("tenant_id", id.String()).
			WithDetail("reason", "storage does not exist")
	}

	// lib/pq sends unknown DSN keys as run-time parameters.
	db, err := sqlx.Open("postgres", d.baseDSN+" search_path="+d.Schema(id))
	if err != nil {
		return nil, tenancy.ErrProvisioningFailed(err).WithDetail("tenant_id", id.String())
	}
	if d.maxOpenConns > 0 {
		db.SetMaxOpenConns(d.maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, tenancy.ErrProvisioningFailed(err).WithDetail("tenant_id", id.String())
	}
	return db, nil
}
