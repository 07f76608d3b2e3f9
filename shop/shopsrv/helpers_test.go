package shopsrv_test

import (
	"context"
	"testing"

	"github.com/Abraxas-365/multistore/iam/auth"
	"github.com/Abraxas-365/multistore/iam/auth/authinfra"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/Abraxas-365/multistore/shop/shopinfra"
	"github.com/Abraxas-365/multistore/shop/shopsrv"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/Abraxas-365/multistore/tenancy/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// store agrupa los servicios de tienda sobre repositorios SQLite reales
type store struct {
	switcher  *scope.Switcher
	tenants   map[kernel.TenantID]*tenancy.Tenant
	passwords auth.PasswordService

	catalogRepo shop.CatalogRepository
	catalog     *shopsrv.CatalogService
	customers   *shopsrv.CustomerService
	carts       *shopsrv.CartService
	orders      *shopsrv.OrderService
	stats       *shopsrv.StatsService
	seed        *shopsrv.SeedHook
}

func newStore(t *testing.T, tenants ...*tenancy.Tenant) *store {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	driver, err := storage.NewSQLiteDriver(t.TempDir(), "", 4)
	require.NoError(t, err)
	pool := storage.NewPool(driver, logger)
	t.Cleanup(func() { pool.Close() })

	catalogRepo := shopinfra.NewSQLCatalogRepository()
	customerRepo := shopinfra.NewSQLCustomerRepository()
	tx := shopinfra.NewTenantTransactor()
	passwords := authinfra.NewBcryptPasswordServiceWithCost(bcrypt.MinCost)
	carts := shopsrv.NewCartService(shopinfra.NewSQLCartRepository(), catalogRepo, tx, logger)

	s := &store{
		switcher:    scope.NewSwitcher(pool, nil, logger, nil),
		tenants:     make(map[kernel.TenantID]*tenancy.Tenant, len(tenants)),
		passwords:   passwords,
		catalogRepo: catalogRepo,
		catalog:     shopsrv.NewCatalogService(catalogRepo),
		customers:   shopsrv.NewCustomerService(customerRepo, passwords),
		carts:       carts,
		orders:      shopsrv.NewOrderService(shopinfra.NewSQLOrderRepository(), carts, catalogRepo, tx, logger),
		stats:       shopsrv.NewStatsService(shopinfra.NewSQLStatsRepository()),
		seed:        shopsrv.NewSeedHook(catalogRepo, customerRepo, passwords, tx, logger),
	}

	schema := shopsrv.NewSchemaHook(logger)
	for _, tn := range tenants {
		require.NoError(t, driver.CreateHandle(ctx, tn.ID))
		s.tenants[tn.ID] = tn
		s.run(t, tn.ID, func(ctx context.Context) {
			require.NoError(t, schema.Provision(ctx, tn))
		})
	}
	return s
}

func storeTenant(id kernel.TenantID) *tenancy.Tenant {
	return &tenancy.Tenant{ID: id, Name: "Store " + id.String(), IsActive: true, Data: tenancy.Metadata{}}
}

// run ejecuta fn dentro de la tienda indicada
func (s *store) run(t *testing.T, id kernel.TenantID, fn func(ctx context.Context)) {
	t.Helper()
	err := s.switcher.Run(context.Background(), s.tenants[id], func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	require.NoError(t, err)
}

func (s *store) product(t *testing.T, ctx context.Context, name string, priceCents int64, stock int) *shop.Product {
	t.Helper()
	p, err := s.catalog.CreateProduct(ctx, shop.CreateProductRequest{Name: name, PriceCents: priceCents, Stock: stock})
	require.NoError(t, err)
	return p
}

func (s *store) customer(t *testing.T, ctx context.Context, email string) *shop.Customer {
	t.Helper()
	c, err := s.customers.Register(ctx, shopsrv.RegisterCustomerRequest{Name: "Ana", Email: email, Password: "secret-123"})
	require.NoError(t, err)
	return c
}

func checkoutRequest() shop.CheckoutRequest {
	return shop.CheckoutRequest{
		CustomerName:    "Ana",
		CustomerEmail:   "Ana@Example.com",
		ShippingAddress: "Main St 1",
	}
}
