package shopinfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/pkg/database"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/jmoiron/sqlx"
)

const (
	categoryColumns = `id, name, slug, description, is_active, created_at, updated_at`
	productColumns  = `id, category_id, name, slug, description, price_cents, stock, is_active, created_at, updated_at`
)

// SQLCatalogRepository implementación SQL de shop.CatalogRepository. Los
// productos leídos por ID quedan en el mapa de identidad de la activación.
type SQLCatalogRepository struct{}

func NewSQLCatalogRepository() *SQLCatalogRepository {
	return &SQLCatalogRepository{}
}

func productKey(id kernel.ProductID) string { return "product:" + id.String() }

// CreateCategory inserta una categoría
func (r *SQLCatalogRepository) CreateCategory(ctx context.Context, c shop.Category) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, q.Rebind(`
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.ID.String(), c.Name, c.Slug, c.Description, c.IsActive, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return shop.ErrSlugTaken().WithDetail("slug", c.Slug)
		}
		return errx.Wrap(err, "failed to create category", errx.TypeInternal).
			WithDetail("slug", c.Slug)
	}
	return nil
}

// FindCategoryBySlug busca una categoría por slug
func (r *SQLCatalogRepository) FindCategoryBySlug(ctx context.Context, slug string) (*shop.Category, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var c shop.Category
	err = sqlx.GetContext(ctx, q, &c, q.Rebind(`SELECT `+categoryColumns+` FROM categories WHERE slug = ?`), slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shop.ErrCategoryNotFound().WithDetail("slug", slug)
		}
		return nil, errx.Wrap(err, "failed to find category", errx.TypeInternal)
	}
	return &c, nil
}

// ListCategories lista las categorías por nombre
func (r *SQLCatalogRepository) ListCategories(ctx context.Context) ([]shop.Category, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	categories := []shop.Category{}
	if err := sqlx.SelectContext(ctx, q, &categories, `SELECT `+categoryColumns+` FROM categories ORDER BY name ASC`); err != nil {
		return nil, errx.Wrap(err, "failed to list categories", errx.TypeInternal)
	}
	return categories, nil
}

// CreateProduct inserta un producto
func (r *SQLCatalogRepository) CreateProduct(ctx context.Context, p shop.Product) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, q.Rebind(`
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID.String(), nullable(p.CategoryID), p.Name, p.Slug, p.Description,
		p.PriceCents, p.Stock, p.IsActive, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return shop.ErrSlugTaken().WithDetail("slug", p.Slug)
		}
		return errx.Wrap(err, "failed to create product", errx.TypeInternal).
			WithDetail("slug", p.Slug)
	}
	return nil
}

// FindProduct busca un producto por ID pasando por el mapa de identidad
func (r *SQLCatalogRepository) FindProduct(ctx context.Context, id kernel.ProductID) (*shop.Product, error) {
	memo, err := scope.MemoFrom(ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := memo.Get(productKey(id)); ok {
		return v.(*shop.Product), nil
	}

	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var p shop.Product
	err = sqlx.GetContext(ctx, q, &p, q.Rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shop.ErrProductNotFound().WithDetail("product_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find product", errx.TypeInternal).
			WithDetail("product_id", id.String())
	}

	memo.Put(productKey(id), &p)
	return &p, nil
}

// FindProductBySlug busca un producto activo por slug
func (r *SQLCatalogRepository) FindProductBySlug(ctx context.Context, slug string) (*shop.Product, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var p shop.Product
	err = sqlx.GetContext(ctx, q, &p,
		q.Rebind(`SELECT `+productColumns+` FROM products WHERE slug = ? AND is_active = ?`), slug, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shop.ErrProductNotFound().WithDetail("slug", slug)
		}
		return nil, errx.Wrap(err, "failed to find product", errx.TypeInternal).
			WithDetail("slug", slug)
	}
	return &p, nil
}

// ListProducts lista los productos por nombre
func (r *SQLCatalogRepository) ListProducts(ctx context.Context, onlyActive bool) ([]shop.Product, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + productColumns + ` FROM products`
	var args []any
	if onlyActive {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY name ASC`

	products := []shop.Product{}
	if err := sqlx.SelectContext(ctx, q, &products, q.Rebind(query), args...); err != nil {
		return nil, errx.Wrap(err, "failed to list products", errx.TypeInternal)
	}
	return products, nil
}

// CountProducts cuenta los productos de la tienda activa
func (r *SQLCatalogRepository) CountProducts(ctx context.Context) (int, error) {
	q, err := conn(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM products`); err != nil {
		return 0, errx.Wrap(err, "failed to count products", errx.TypeInternal)
	}
	return n, nil
}

// DecrementStock descuenta stock solo si alcanza
func (r *SQLCatalogRepository) DecrementStock(ctx context.Context, id kernel.ProductID, quantity int) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE products SET stock = stock - ?, updated_at = ?
		WHERE id = ? AND stock >= ?`),
		quantity, time.Now().UTC(), id.String(), quantity)
	if err != nil {
		return errx.Wrap(err, "failed to decrement stock", errx.TypeInternal).
			WithDetail("product_id", id.String())
	}

	if memo, err := scope.MemoFrom(ctx); err == nil {
		memo.Forget(productKey(id))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get affected rows", errx.TypeInternal)
	}
	if rows > 0 {
		return nil
	}

	// Distinguir producto inexistente de stock insuficiente
	if _, err := r.FindProduct(ctx, id); err != nil {
		return err
	}
	return shop.ErrInsufficientStock().
		WithDetail("product_id", id.String()).
		WithDetail("requested", quantity)
}
