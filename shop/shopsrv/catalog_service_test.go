package shopsrv_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/Abraxas-365/multistore/shop/shopsrv"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCreateProduct(t *testing.T) {
	s := newStore(t, storeTenant("acme"))

	s.run(t, "acme", func(ctx context.Context) {
		p, err := s.catalog.CreateProduct(ctx, shop.CreateProductRequest{Name: "Coffee Maker 3000", PriceCents: 8999, Stock: 3})
		require.NoError(t, err)
		assert.Equal(t, "coffee-maker-3000", p.Slug)
		assert.True(t, p.IsActive)

		p, err = s.catalog.CreateProduct(ctx, shop.CreateProductRequest{Name: "Blender", Slug: "blend", PriceCents: 5999})
		require.NoError(t, err)
		assert.Equal(t, "blend", p.Slug)

		_, err = s.catalog.CreateProduct(ctx, shop.CreateProductRequest{Name: "Blender II", Slug: "blend"})
		assert.True(t, errx.IsType(err, errx.TypeConflict))

		_, err = s.catalog.CreateProduct(ctx, shop.CreateProductRequest{Name: "  "})
		assert.True(t, errx.IsType(err, errx.TypeValidation))

		found, err := s.catalog.Product(ctx, "blend")
		require.NoError(t, err)
		assert.Equal(t, "Blender", found.Name)
	})
}

func TestCatalogHomeLimitsFeatured(t *testing.T) {
	s := newStore(t, storeTenant("acme"))

	s.run(t, "acme", func(ctx context.Context) {
		for i := 0; i < 10; i++ {
			s.product(t, ctx, fmt.Sprintf("Product %02d", i), 100, 1)
		}

		home, err := s.catalog.Home(ctx)
		require.NoError(t, err)
		assert.Len(t, home.Featured, 8)
		assert.Empty(t, home.Categories)

		all, err := s.catalog.Products(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 10)
	})
}

func TestCustomerRegister(t *testing.T) {
	s := newStore(t, storeTenant("acme"))

	s.run(t, "acme", func(ctx context.Context) {
		c, err := s.customers.Register(ctx, shopsrv.RegisterCustomerRequest{Name: " Ana ", Email: "Ana@Example.com", Password: "secret-123"})
		require.NoError(t, err)
		assert.Equal(t, "Ana", c.Name)
		assert.Equal(t, "ana@example.com", c.Email)
		assert.True(t, s.passwords.VerifyPassword(c.PasswordHash, "secret-123"))

		_, err = s.customers.Register(ctx, shopsrv.RegisterCustomerRequest{Name: "Ana", Email: "ana@example.com", Password: "secret-123"})
		assert.True(t, errx.IsType(err, errx.TypeConflict))

		for _, req := range []shopsrv.RegisterCustomerRequest{
			{Name: "", Email: "x@example.com", Password: "secret-123"},
			{Name: "X", Email: "no-at-sign", Password: "secret-123"},
			{Name: "X", Email: "x@example.com", Password: "short"},
		} {
			_, err := s.customers.Register(ctx, req)
			assert.True(t, errx.IsType(err, errx.TypeValidation), "%+v", req)
		}

		found, err := s.customers.FindByEmail(ctx, "ANA@example.com")
		require.NoError(t, err)
		assert.Equal(t, c.ID, found.ID)

		list, err := s.customers.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestSeedHookIsIdempotent(t *testing.T) {
	general := storeTenant("general")
	food := storeTenant("grocer")
	food.Data = tenancy.Metadata{"store_type": shopsrv.StoreTypeFood}
	s := newStore(t, general, food)

	cases := []struct {
		tenant     *tenancy.Tenant
		products   int
		categories int
	}{
		{general, 6, 3},
		{food, 10, 5},
	}
	for _, tc := range cases {
		t.Run(tc.tenant.ID.String(), func(t *testing.T) {
			s.run(t, tc.tenant.ID, func(ctx context.Context) {
				seeded, err := s.seed.Seed(ctx, tc.tenant)
				require.NoError(t, err)
				assert.True(t, seeded)

				seeded, err = s.seed.Seed(ctx, tc.tenant)
				require.NoError(t, err)
				assert.False(t, seeded, "a seeded store is left alone")

				products, err := s.catalog.Products(ctx)
				require.NoError(t, err)
				assert.Len(t, products, tc.products)

				home, err := s.catalog.Home(ctx)
				require.NoError(t, err)
				assert.Len(t, home.Categories, tc.categories)

				admin, err := s.customers.FindByEmail(ctx, "admin@example.com")
				require.NoError(t, err)
				assert.True(t, admin.IsAdmin)
				assert.True(t, s.passwords.VerifyPassword(admin.PasswordHash, shopsrv.DemoPassword))

				customers, err := s.customers.List(ctx)
				require.NoError(t, err)
				assert.Len(t, customers, 2)
			})
		})
	}
}

func TestSeedHookRequiresActiveTenant(t *testing.T) {
	s := newStore(t)

	_, err := s.seed.Seed(context.Background(), storeTenant("acme"))
	assert.ErrorIs(t, err, tenancy.NoActiveContext)
}
