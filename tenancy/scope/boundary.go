package scope

import (
	"context"

	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/jmoiron/sqlx"
)

// DB is the only way tenant-scoped code reaches storage. It fails with
// tenancy.NoActiveContext when no tenant is bound; there is no fallback to
// the central database.
func DB(ctx context.Context) (*sqlx.DB, error) {
	b, err := active(ctx)
	if err != nil {
		return nil, err
	}
	return b.lease.DB(), nil
}

// Current returns a copy of the active tenant.
func Current(ctx context.Context) (*tenancy.Tenant, error) {
	b, err := active(ctx)
	if err != nil {
		return nil, err
	}
	return b.tenant.Clone(), nil
}

// CurrentID returns the key of the active tenant.
func CurrentID(ctx context.Context) (kernel.TenantID, error) {
	b, err := active(ctx)
	if err != nil {
		return "", err
	}
	return b.tenant.ID, nil
}

// IsActive reports whether a tenant is bound to ctx's unit of work.
func IsActive(ctx context.Context) bool {
	u := from(ctx)
	return u != nil && u.current() != nil
}

// MemoFrom returns the identity map of the current activation.
func MemoFrom(ctx context.Context) (*Memo, error) {
	b, err := active(ctx)
	if err != nil {
		return nil, err
	}
	return b.memo, nil
}

// EnsureCentral guards central-scope data (the tenant registry). It fails
// with tenancy.WrongContext while a tenant is bound.
func EnsureCentral(ctx context.Context) error {
	u := from(ctx)
	if u == nil {
		return nil
	}
	if b := u.current(); b != nil {
		return tenancy.ErrCentralOnly().WithDetail("active_tenant", b.tenant.ID.String())
	}
	return nil
}

func active(ctx context.Context) (*binding, error) {
	u := from(ctx)
	if u == nil {
		return nil, tenancy.ErrNoActiveContext()
	}
	b := u.current()
	if b == nil {
		return nil, tenancy.ErrNoActiveContext()
	}
	return b, nil
}
