package shopsrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/iam/auth"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/Abraxas-365/multistore/shop/shopinfra"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SchemaHook creates the store tables inside a newly provisioned tenant.
type SchemaHook struct {
	logger *zap.Logger
}

func NewSchemaHook(logger *zap.Logger) *SchemaHook {
	return &SchemaHook{logger: logger}
}

func (h *SchemaHook) Name() string       { return "schema" }
func (h *SchemaHook) NeedsContext() bool { return true }

func (h *SchemaHook) Provision(ctx context.Context, t *tenancy.Tenant) error {
	applied, err := shopinfra.MigrateTenant(ctx)
	if err != nil {
		return err
	}
	h.logger.Info("tenant schema migrated",
		zap.String("tenant_id", t.ID.String()),
		zap.Int("applied", applied))
	return nil
}

// Deprovision has nothing to undo: the tables go away with the storage.
func (h *SchemaHook) Deprovision(ctx context.Context, t *tenancy.Tenant) error {
	return nil
}

// SeedHook loads the demo catalog and customers into a new tenant. It must
// run after SchemaHook.
type SeedHook struct {
	catalog   shop.CatalogRepository
	customers shop.CustomerRepository
	passwords auth.PasswordService
	tx        shop.Transactor
	logger    *zap.Logger
}

func NewSeedHook(
	catalog shop.CatalogRepository,
	customers shop.CustomerRepository,
	passwords auth.PasswordService,
	tx shop.Transactor,
	logger *zap.Logger,
) *SeedHook {
	return &SeedHook{
		catalog:   catalog,
		customers: customers,
		passwords: passwords,
		tx:        tx,
		logger:    logger,
	}
}

func (h *SeedHook) Name() string       { return "seed" }
func (h *SeedHook) NeedsContext() bool { return true }

func (h *SeedHook) Provision(ctx context.Context, t *tenancy.Tenant) error {
	_, err := h.Seed(ctx, t)
	return err
}

func (h *SeedHook) Deprovision(ctx context.Context, t *tenancy.Tenant) error {
	return nil
}

// Seed fills the active tenant's store unless it already has products.
// It reports whether anything was written.
func (h *SeedHook) Seed(ctx context.Context, t *tenancy.Tenant) (bool, error) {
	count, err := h.catalog.CountProducts(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		h.logger.Debug("tenant already seeded", zap.String("tenant_id", t.ID.String()))
		return false, nil
	}

	hash, err := h.passwords.HashPassword(DemoPassword)
	if err != nil {
		return false, errx.Wrap(err, "failed to hash seed password", errx.TypeInternal)
	}

	data := catalogFor(t.StoreType())
	err = h.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()

		for _, c := range seedCustomers {
			// Customers may exist from an earlier partial seed
			if _, err := h.customers.FindByEmail(ctx, c.email); err == nil {
				continue
			} else if !errx.IsType(err, errx.TypeNotFound) {
				return err
			}
			if err := h.customers.Create(ctx, shop.Customer{
				ID:           kernel.NewUserID(uuid.NewString()),
				Name:         c.name,
				Email:        c.email,
				PasswordHash: hash,
				IsAdmin:      c.admin,
				CreatedAt:    now,
				UpdatedAt:    now,
			}); err != nil {
				return err
			}
		}

		ids := make(map[string]kernel.CategoryID, len(data.categories))
		for _, c := range data.categories {
			existing, err := h.catalog.FindCategoryBySlug(ctx, c.slug)
			if err == nil {
				ids[c.slug] = existing.ID
				continue
			}
			if !errx.IsType(err, errx.TypeNotFound) {
				return err
			}
			id := kernel.NewCategoryID(uuid.NewString())
			if err := h.catalog.CreateCategory(ctx, shop.Category{
				ID:          id,
				Name:        c.name,
				Slug:        c.slug,
				Description: c.description,
				IsActive:    true,
				CreatedAt:   now,
				UpdatedAt:   now,
			}); err != nil {
				return err
			}
			ids[c.slug] = id
		}

		for _, p := range data.products {
			categoryID := ids[p.category]
			if err := h.catalog.CreateProduct(ctx, shop.Product{
				ID:          kernel.NewProductID(uuid.NewString()),
				CategoryID:  &categoryID,
				Name:        p.name,
				Slug:        p.slug,
				Description: p.description,
				PriceCents:  p.priceCents,
				Stock:       p.stock,
				IsActive:    true,
				CreatedAt:   now,
				UpdatedAt:   now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	h.logger.Info("tenant seeded",
		zap.String("tenant_id", t.ID.String()),
		zap.String("store_type", t.StoreType()),
		zap.Int("categories", len(data.categories)),
		zap.Int("products", len(data.products)))
	return true, nil
}
