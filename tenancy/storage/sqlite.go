package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Abraxas-365/multistore/pkg/database"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/jmoiron/sqlx"
)

// SQLiteDriver keeps each tenant in its own database file under dir.
type SQLiteDriver struct {
	dir          string
	prefix       string
	maxOpenConns int
}

func NewSQLiteDriver(dir, prefix string, maxOpenConns int) (*SQLiteDriver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tenant storage directory: %w", err)
	}
	return &SQLiteDriver{dir: dir, prefix: prefix, maxOpenConns: maxOpenConns}, nil
}

func (d *SQLiteDriver) Name() string { return "sqlite" }

// Path is the database file of the tenant.
func (d *SQLiteDriver) Path(id kernel.TenantID) string {
	return filepath.Join(d.dir, d.prefix+id.String()+".db")
}

func (d *SQLiteDriver) CreateHandle(ctx context.Context, id kernel.TenantID) error {
	if err := tenancy.ValidateKey(id); err != nil {
		return err
	}

	path := d.Path(id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return tenancy.ErrProvisioningFailed(err).
				WithDetail("tenant_id", id.String()).
				WithDetail("reason", "storage already exists")
		}
		return tenancy.ErrProvisioningFailed(err).WithDetail("tenant_id", id.String())
	}
	f.Close()

	// The first connection writes the header and switches the file to WAL.
	db, err := database.OpenSQLite(path, 1)
	if err == nil {
		err = db.PingContext(ctx)
		db.Close()
	}
	if err != nil {
		d.removeFiles(path)
		return tenancy.ErrProvisioningFailed(err).WithDetail("tenant_id", id.String())
	}

	return nil
}

func (d *SQLiteDriver) DestroyHandle(ctx context.Context, id kernel.TenantID) error {
	if err := d.removeFiles(d.Path(id)); err != nil {
		return tenancy.ErrProvisioningFailed(err).
			WithDetail("tenant_id", id.String()).
			WithDetail("reason", "failed to remove storage")
	}
	return nil
}

func (d *SQLiteDriver) Exists(ctx context.Context, id kernel.TenantID) (bool, error) {
	_, err := os.Stat(d.Path(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (d *SQLiteDriver) Connect(ctx context.Context, id kernel.TenantID) (*sqlx.DB, error) {
	exists, err := d.Exists(ctx, id)
	if err != nil {
		return nil, tenancy.ErrProvisioningFailed(err).WithDetail("tenant_id", id.String())
	}
	if !exists {
		return nil, tenancy.ErrTenantNotFound().
			WithDetail("tenant_id", id.String()).
			WithDetail("reason", "storage does not exist")
	}

	db, err := database.OpenSQLite(d.Path(id), d.maxOpenConns)
	if err != nil {
		return nil, tenancy.ErrProvisioningFailed(err).WithDetail("tenant_id", id.String())
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, tenancy.ErrProvisioningFailed(err).WithDetail("tenant_id", id.String())
	}
	return db, nil
}

func (d *SQLiteDriver) removeFiles(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
