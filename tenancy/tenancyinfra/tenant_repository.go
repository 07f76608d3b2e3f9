package tenancyinfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/pkg/database"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/jmoiron/sqlx"
)

const tenantColumns = `id, name, email, logo, is_active, data, created_at, updated_at`

// SQLTenantRepository implementación SQL (Postgres o SQLite) de TenantRepository.
// Toda operación exige el contexto central.
type SQLTenantRepository struct {
	db *sqlx.DB
}

// NewSQLTenantRepository crea una nueva instancia del repositorio de tiendas
func NewSQLTenantRepository(db *sqlx.DB) *SQLTenantRepository {
	return &SQLTenantRepository{db: db}
}

// FindByID busca una tienda por ID
func (r *SQLTenantRepository) FindByID(ctx context.Context, id kernel.TenantID) (*tenancy.Tenant, error) {
	if err := scope.EnsureCentral(ctx); err != nil {
		return nil, err
	}

	q := conn(ctx, r.db)
	var t tenancy.Tenant
	err := sqlx.GetContext(ctx, q, &t, q.Rebind(`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`), id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenancy.ErrTenantNotFound().WithDetail("tenant_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find tenant by id", errx.TypeInternal).
			WithDetail("tenant_id", id.String())
	}

	return &t, nil
}

// FindAll lista todas las tiendas
func (r *SQLTenantRepository) FindAll(ctx context.Context) ([]*tenancy.Tenant, error) {
	return r.list(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY id ASC`)
}

// FindActive lista las tiendas habilitadas
func (r *SQLTenantRepository) FindActive(ctx context.Context) ([]*tenancy.Tenant, error) {
	return r.list(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE is_active = ? ORDER BY id ASC`, true)
}

func (r *SQLTenantRepository) list(ctx context.Context, query string, args ...any) ([]*tenancy.Tenant, error) {
	if err := scope.EnsureCentral(ctx); err != nil {
		return nil, err
	}

	q := conn(ctx, r.db)
	var tenants []tenancy.Tenant
	if err := sqlx.SelectContext(ctx, q, &tenants, q.Rebind(query), args...); err != nil {
		return nil, errx.Wrap(err, "failed to list tenants", errx.TypeInternal)
	}

	// Convertir a slice de punteros
	result := make([]*tenancy.Tenant, len(tenants))
	for i := range tenants {
		result[i] = &tenants[i]
	}

	return result, nil
}

// Create inserta una tienda nueva
func (r *SQLTenantRepository) Create(ctx context.Context, t *tenancy.Tenant) error {
	if err := scope.EnsureCentral(ctx); err != nil {
		return err
	}

	query := `
		INSERT INTO tenants (id, name, email, logo, is_active, data, created_at, updated_at)
		VALUES (:id, :name, :email, :logo, :is_active, :data, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, t); err != nil {
		if database.IsUniqueViolation(err) {
			return tenancy.ErrTenantAlreadyExists().WithDetail("tenant_id", t.ID.String())
		}
		return errx.Wrap(err, "failed to create tenant", errx.TypeInternal).
			WithDetail("tenant_id", t.ID.String())
	}

	return nil
}

// Update actualiza los datos editables de una tienda
func (r *SQLTenantRepository) Update(ctx context.Context, t *tenancy.Tenant) error {
	if err := scope.EnsureCentral(ctx); err != nil {
		return err
	}

	query := `
		UPDATE tenants SET
			name = :name,
			email = :email,
			logo = :logo,
			is_active = :is_active,
			data = :data,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, t)
	if err != nil {
		return errx.Wrap(err, "failed to update tenant", errx.TypeInternal).
			WithDetail("tenant_id", t.ID.String())
	}

	return checkAffected(result, tenancy.ErrTenantNotFound().WithDetail("tenant_id", t.ID.String()))
}

// Delete elimina el registro de una tienda
func (r *SQLTenantRepository) Delete(ctx context.Context, id kernel.TenantID) error {
	if err := scope.EnsureCentral(ctx); err != nil {
		return err
	}

	q := conn(ctx, r.db)
	result, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM tenants WHERE id = ?`), id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete tenant", errx.TypeInternal).
			WithDetail("tenant_id", id.String())
	}

	return checkAffected(result, tenancy.ErrTenantNotFound().WithDetail("tenant_id", id.String()))
}

func checkAffected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get affected rows", errx.TypeInternal)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
