package shopsrv_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/multistore/iam/auth/authinfra"
	"github.com/Abraxas-365/multistore/pkg/database"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/Abraxas-365/multistore/shop/shopinfra"
	"github.com/Abraxas-365/multistore/shop/shopsrv"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/Abraxas-365/multistore/tenancy/storage"
	"github.com/Abraxas-365/multistore/tenancy/tenancyinfra"
	"github.com/Abraxas-365/multistore/tenancy/tenancysrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// platform arma el registro completo con los hooks de la tienda
type platform struct {
	registry *tenancysrv.Registry
	resolver *tenancysrv.Resolver
	switcher *scope.Switcher
	carts    *shopsrv.CartService
	orders   *shopsrv.OrderService
	catalog  *shopsrv.CatalogService
}

func newPlatform(t *testing.T) *platform {
	t.Helper()
	dir := t.TempDir()
	logger := zap.NewNop()

	central, err := database.NewSQLiteDB(filepath.Join(dir, "central.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { central.Close() })
	require.NoError(t, tenancyinfra.MigrateCentral(context.Background(), central))

	driver, err := storage.NewSQLiteDriver(filepath.Join(dir, "tenants"), "tenant_", 4)
	require.NoError(t, err)
	pool := storage.NewPool(driver, logger)
	t.Cleanup(func() { pool.Close() })

	tenants := tenancyinfra.NewSQLTenantRepository(central)
	domains := tenancyinfra.NewSQLDomainRepository(central)
	switcher := scope.NewSwitcher(pool, tenants, logger, nil)
	resolver := tenancysrv.NewResolver(domains, time.Minute, logger, nil)

	catalogRepo := shopinfra.NewSQLCatalogRepository()
	tx := shopinfra.NewTenantTransactor()
	passwords := authinfra.NewBcryptPasswordServiceWithCost(bcrypt.MinCost)
	carts := shopsrv.NewCartService(shopinfra.NewSQLCartRepository(), catalogRepo, tx, logger)

	registry := tenancysrv.NewRegistry(tenants, domains, tenancyinfra.NewSQLTransactor(central),
		pool, switcher, resolver, logger, nil,
		tenancysrv.WithHooks(
			shopsrv.NewSchemaHook(logger),
			shopsrv.NewSeedHook(catalogRepo, shopinfra.NewSQLCustomerRepository(), passwords, tx, logger),
		))

	return &platform{
		registry: registry,
		resolver: resolver,
		switcher: switcher,
		carts:    carts,
		orders:   shopsrv.NewOrderService(shopinfra.NewSQLOrderRepository(), carts, catalogRepo, tx, logger),
		catalog:  shopsrv.NewCatalogService(catalogRepo),
	}
}

// buy agrega una unidad del primer producto y cierra la compra
func (p *platform) buy(ctx context.Context, session kernel.SessionID) (*shop.Order, error) {
	products, err := p.catalog.Products(ctx)
	if err != nil {
		return nil, err
	}
	owner := shopsrv.CartOwner{Session: session}
	if _, err := p.carts.AddItem(ctx, owner, shop.AddCartItemRequest{ProductID: products[0].ID, Quantity: 1}); err != nil {
		return nil, err
	}
	return p.orders.Checkout(ctx, owner, checkoutRequest())
}

func TestStorefrontAcmeScenario(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()

	_, err := p.registry.Create(ctx, tenancy.CreateTenantRequest{
		ID:      "acme",
		Name:    "Acme Foods",
		Domains: []string{"acme.example"},
		Data:    tenancy.Metadata{"store_type": shopsrv.StoreTypeFood},
	})
	require.NoError(t, err)

	acme, err := p.resolver.Resolve(ctx, "acme.example")
	require.NoError(t, err)

	var number string
	err = p.switcher.Run(ctx, acme, func(ctx context.Context) error {
		products, err := p.catalog.Products(ctx)
		require.NoError(t, err)
		assert.Len(t, products, 10, "the grocery catalog was seeded")

		order, err := p.buy(ctx, "sess-1")
		if err != nil {
			return err
		}
		number = order.Number
		return nil
	})
	require.NoError(t, err)

	err = p.switcher.Run(ctx, acme, func(ctx context.Context) error {
		orders, err := p.orders.List(ctx)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, number, orders[0].Number)
		return nil
	})
	require.NoError(t, err)

	_, err = p.resolver.Resolve(ctx, "other.example")
	assert.ErrorIs(t, err, tenancy.NotFound)

	_, err = p.orders.List(ctx)
	assert.ErrorIs(t, err, tenancy.NoActiveContext)
}

func TestStorefrontTenantsStayIsolated(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()

	for _, id := range []kernel.TenantID{"tenant1", "tenant2"} {
		_, err := p.registry.Create(ctx, tenancy.CreateTenantRequest{ID: id, Name: id.String()})
		require.NoError(t, err)
	}

	writes := map[kernel.TenantID]int{"tenant1": 1, "tenant2": 2}
	var wg sync.WaitGroup
	for id, n := range writes {
		wg.Add(1)
		go func(id kernel.TenantID, n int) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				err := p.switcher.RunByID(ctx, id, func(ctx context.Context) error {
					_, err := p.buy(ctx, kernel.SessionID(id.String()+"-session"))
					return err
				})
				assert.NoError(t, err)
			}
		}(id, n)
	}
	wg.Wait()

	for id, n := range writes {
		err := p.switcher.RunByID(ctx, id, func(ctx context.Context) error {
			orders, err := p.orders.List(ctx)
			require.NoError(t, err)
			assert.Len(t, orders, n, "orders of %s", id)
			return nil
		})
		require.NoError(t, err)
	}
}

func TestStorefrontDeleteRemovesStore(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()

	_, err := p.registry.Create(ctx, tenancy.CreateTenantRequest{ID: "acme", Name: "Acme", Domains: []string{"acme.example"}})
	require.NoError(t, err)
	require.NoError(t, p.switcher.RunByID(ctx, "acme", func(ctx context.Context) error {
		_, err := p.buy(ctx, "sess-1")
		return err
	}))

	require.NoError(t, p.registry.Delete(ctx, "acme"))

	_, err = p.resolver.Resolve(ctx, "acme.example")
	assert.ErrorIs(t, err, tenancy.NotFound)

	err = p.switcher.RunByID(ctx, "acme", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, tenancy.NotFound)

	// El mismo ID arranca con una tienda nueva y sin pedidos
	_, err = p.registry.Create(ctx, tenancy.CreateTenantRequest{ID: "acme", Name: "Acme again"})
	require.NoError(t, err)
	require.NoError(t, p.switcher.RunByID(ctx, "acme", func(ctx context.Context) error {
		orders, err := p.orders.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, orders)
		return nil
	}))
}
