package shopinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/jmoiron/sqlx"
)

// SQLStatsRepository calcula las estadísticas de la tienda activa
type SQLStatsRepository struct{}

func NewSQLStatsRepository() *SQLStatsRepository {
	return &SQLStatsRepository{}
}

// Stats agrega los contadores en una sola consulta y luego los más vendidos
func (r *SQLStatsRepository) Stats(ctx context.Context, since time.Time) (*shop.StoreStats, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var s shop.StoreStats
	err = sqlx.GetContext(ctx, q, &s, q.Rebind(`
		SELECT
			(SELECT COUNT(*) FROM products) AS total_products,
			(SELECT COUNT(*) FROM products WHERE is_active = ?) AS active_products,
			(SELECT COUNT(*) FROM products WHERE is_active = ? AND stock > 0 AND stock < ?) AS low_stock_products,
			(SELECT COUNT(*) FROM products WHERE stock <= 0) AS out_of_stock_products,
			(SELECT COUNT(*) FROM categories) AS total_categories,
			(SELECT COUNT(*) FROM categories c
				WHERE NOT EXISTS (SELECT 1 FROM products p WHERE p.category_id = c.id)) AS empty_categories,
			(SELECT COUNT(*) FROM customers WHERE is_admin = ?) AS total_customers,
			(SELECT COUNT(*) FROM customers WHERE is_admin = ? AND created_at >= ?) AS new_customers,
			(SELECT COUNT(*) FROM orders) AS total_orders`),
		true, true, shop.LowStockThreshold, false, false, since.UTC())
	if err != nil {
		return nil, errx.Wrap(err, "failed to compute store stats", errx.TypeInternal)
	}

	s.TopSelling = []shop.TopSeller{}
	err = sqlx.SelectContext(ctx, q, &s.TopSelling, `
		SELECT product_name, SUM(quantity) AS total_quantity
		FROM order_items
		GROUP BY product_name
		ORDER BY total_quantity DESC, product_name ASC
		LIMIT 5`)
	if err != nil {
		return nil, errx.Wrap(err, "failed to compute top sellers", errx.TypeInternal)
	}
	return &s, nil
}
