package tenancyinfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/pkg/database"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/jmoiron/sqlx"
)

// SQLDomainRepository implementación SQL de DomainRepository
type SQLDomainRepository struct {
	db *sqlx.DB
}

// NewSQLDomainRepository crea una nueva instancia del repositorio de dominios
func NewSQLDomainRepository(db *sqlx.DB) *SQLDomainRepository {
	return &SQLDomainRepository{db: db}
}

// FindTenantByDomain resuelve un host normalizado a su tienda
func (r *SQLDomainRepository) FindTenantByDomain(ctx context.Context, host string) (*tenancy.Tenant, error) {
	if err := scope.EnsureCentral(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT t.id, t.name, t.email, t.logo, t.is_active, t.data, t.created_at, t.updated_at
		FROM domains d
		JOIN tenants t ON t.id = d.tenant_id
		WHERE d.domain = ?`

	q := conn(ctx, r.db)
	var t tenancy.Tenant
	if err := sqlx.GetContext(ctx, q, &t, q.Rebind(query), host); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenancy.ErrDomainNotFound().WithDetail("domain", host)
		}
		return nil, errx.Wrap(err, "failed to resolve domain", errx.TypeInternal).
			WithDetail("domain", host)
	}

	return &t, nil
}

// FindByDomain busca el registro de un dominio
func (r *SQLDomainRepository) FindByDomain(ctx context.Context, host string) (*tenancy.Domain, error) {
	if err := scope.EnsureCentral(ctx); err != nil {
		return nil, err
	}

	q := conn(ctx, r.db)
	var d tenancy.Domain
	err := sqlx.GetContext(ctx, q, &d,
		q.Rebind(`SELECT domain, tenant_id, created_at, updated_at FROM domains WHERE domain = ?`), host)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenancy.ErrDomainNotFound().WithDetail("domain", host)
		}
		return nil, errx.Wrap(err, "failed to find domain", errx.TypeInternal).
			WithDetail("domain", host)
	}

	return &d, nil
}

// FindByTenant lista los dominios de una tienda
func (r *SQLDomainRepository) FindByTenant(ctx context.Context, id kernel.TenantID) ([]tenancy.Domain, error) {
	if err := scope.EnsureCentral(ctx); err != nil {
		return nil, err
	}

	q := conn(ctx, r.db)
	var domains []tenancy.Domain
	err := sqlx.SelectContext(ctx, q, &domains,
		q.Rebind(`SELECT domain, tenant_id, created_at, updated_at FROM domains WHERE tenant_id = ? ORDER BY domain ASC`),
		id.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to list domains", errx.TypeInternal).
			WithDetail("tenant_id", id.String())
	}

	return domains, nil
}

// Create registra un dominio
func (r *SQLDomainRepository) Create(ctx context.Context, d tenancy.Domain) error {
	if err := scope.EnsureCentral(ctx); err != nil {
		return err
	}

	query := `
		INSERT INTO domains (domain, tenant_id, created_at, updated_at)
		VALUES (:domain, :tenant_id, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, d); err != nil {
		if database.IsUniqueViolation(err) {
			return tenancy.ErrDomainTaken().WithDetail("domain", d.Domain)
		}
		return errx.Wrap(err, "failed to create domain", errx.TypeInternal).
			WithDetail("domain", d.Domain)
	}

	return nil
}

// Reassign mueve un dominio a otra tienda
func (r *SQLDomainRepository) Reassign(ctx context.Context, host string, id kernel.TenantID) error {
	if err := scope.EnsureCentral(ctx); err != nil {
		return err
	}

	q := conn(ctx, r.db)
	result, err := q.ExecContext(ctx,
		q.Rebind(`UPDATE domains SET tenant_id = ?, updated_at = ? WHERE domain = ?`),
		id.String(), time.Now().UTC(), host)
	if err != nil {
		return errx.Wrap(err, "failed to reassign domain", errx.TypeInternal).
			WithDetail("domain", host)
	}

	return checkAffected(result, tenancy.ErrDomainNotFound().WithDetail("domain", host))
}

// Delete elimina un dominio
func (r *SQLDomainRepository) Delete(ctx context.Context, host string) error {
	if err := scope.EnsureCentral(ctx); err != nil {
		return err
	}

	q := conn(ctx, r.db)
	result, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM domains WHERE domain = ?`), host)
	if err != nil {
		return errx.Wrap(err, "failed to delete domain", errx.TypeInternal).
			WithDetail("domain", host)
	}

	return checkAffected(result, tenancy.ErrDomainNotFound().WithDetail("domain", host))
}

// DeleteByTenant elimina todos los dominios de una tienda
func (r *SQLDomainRepository) DeleteByTenant(ctx context.Context, id kernel.TenantID) error {
	if err := scope.EnsureCentral(ctx); err != nil {
		return err
	}

	q := conn(ctx, r.db)
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM domains WHERE tenant_id = ?`), id.String()); err != nil {
		return errx.Wrap(err, "failed to delete tenant domains", errx.TypeInternal).
			WithDetail("tenant_id", id.String())
	}
	return nil
}
