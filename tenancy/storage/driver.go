// Package storage owns the per-tenant storage handles: how they are created,
// destroyed and connected to, and how open connections are shared between
// units of work that activate the same tenant.
package storage

import (
	"context"

	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

// Driver creates and connects to one isolated store per tenant.
//
// Connect must fail with tenancy.NotFound when the store does not exist; it
// must never create one implicitly.
type Driver interface {
	Name() string
	CreateHandle(ctx context.Context, id kernel.TenantID) error
	DestroyHandle(ctx context.Context, id kernel.TenantID) error
	Connect(ctx context.Context, id kernel.TenantID) (*sqlx.DB, error)
	Exists(ctx context.Context, id kernel.TenantID) (bool, error)
}
