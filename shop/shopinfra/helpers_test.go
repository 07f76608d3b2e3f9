package shopinfra_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/Abraxas-365/multistore/shop/shopinfra"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/Abraxas-365/multistore/tenancy/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	switcher *scope.Switcher
	tenants  map[kernel.TenantID]*tenancy.Tenant
}

// newFixture crea tiendas SQLite con el esquema de tienda aplicado
func newFixture(t *testing.T, ids ...kernel.TenantID) *fixture {
	t.Helper()
	ctx := context.Background()

	driver, err := storage.NewSQLiteDriver(t.TempDir(), "", 4)
	require.NoError(t, err)
	pool := storage.NewPool(driver, zap.NewNop())
	t.Cleanup(func() { pool.Close() })

	f := &fixture{
		switcher: scope.NewSwitcher(pool, nil, zap.NewNop(), nil),
		tenants:  make(map[kernel.TenantID]*tenancy.Tenant, len(ids)),
	}
	for _, id := range ids {
		require.NoError(t, driver.CreateHandle(ctx, id))
		f.tenants[id] = &tenancy.Tenant{ID: id, Name: "Store " + id.String(), IsActive: true}
		f.run(t, id, func(ctx context.Context) {
			_, err := shopinfra.MigrateTenant(ctx)
			require.NoError(t, err)
		})
	}
	return f
}

// run ejecuta fn dentro de la tienda indicada
func (f *fixture) run(t *testing.T, id kernel.TenantID, fn func(ctx context.Context)) {
	t.Helper()
	err := f.switcher.Run(context.Background(), f.tenants[id], func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	require.NoError(t, err)
}

func newProduct(slug string, stock int) shop.Product {
	now := time.Now().UTC()
	return shop.Product{
		ID:         kernel.NewProductID("prod-" + slug),
		Name:       slug,
		Slug:       slug,
		PriceCents: 1000,
		Stock:      stock,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newCustomer(email string) shop.Customer {
	now := time.Now().UTC()
	return shop.Customer{
		ID:           kernel.NewUserID("cust-" + email),
		Name:         "Customer",
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
