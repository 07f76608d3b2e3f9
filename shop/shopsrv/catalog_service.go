package shopsrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/google/uuid"
)

const featuredLimit = 8

// CatalogService exposes the storefront catalog of the active tenant.
type CatalogService struct {
	catalog shop.CatalogRepository
}

func NewCatalogService(catalog shop.CatalogRepository) *CatalogService {
	return &CatalogService{catalog: catalog}
}

// HomePage is what the storefront landing page shows.
type HomePage struct {
	Categories []shop.Category `json:"categories"`
	Featured   []shop.Product  `json:"featured"`
}

func (s *CatalogService) Home(ctx context.Context) (*HomePage, error) {
	categories, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.catalog.ListProducts(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(products) > featuredLimit {
		products = products[:featuredLimit]
	}
	return &HomePage{Categories: categories, Featured: products}, nil
}

func (s *CatalogService) Products(ctx context.Context) ([]shop.Product, error) {
	return s.catalog.ListProducts(ctx, true)
}

func (s *CatalogService) Product(ctx context.Context, slug string) (*shop.Product, error) {
	return s.catalog.FindProductBySlug(ctx, slug)
}

// CreateProduct adds a product to the active tenant's catalog.
func (s *CatalogService) CreateProduct(ctx context.Context, req shop.CreateProductRequest) (*shop.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	slug := req.Slug
	if slug == "" {
		slug = shop.Slugify(req.Name)
	}

	now := time.Now().UTC()
	p := shop.Product{
		ID:          kernel.NewProductID(uuid.NewString()),
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.catalog.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}
