package shopinfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/jmoiron/sqlx"
)

const (
	orderColumns = `id, number, customer_id, status, customer_name, customer_email,
		shipping_address, total_cents, notes, created_at, updated_at`
	orderItemColumns = `id, order_id, product_id, product_name, unit_price_cents, quantity`
)

// SQLOrderRepository implementación SQL de shop.OrderRepository
type SQLOrderRepository struct{}

func NewSQLOrderRepository() *SQLOrderRepository {
	return &SQLOrderRepository{}
}

// Create inserta el pedido y sus líneas
func (r *SQLOrderRepository) Create(ctx context.Context, o shop.Order) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, q.Rebind(`
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		o.ID.String(), o.Number, nullable(o.CustomerID), string(o.Status), o.CustomerName,
		o.CustomerEmail, o.ShippingAddress, o.TotalCents, o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return errx.Wrap(err, "failed to create order", errx.TypeInternal).
			WithDetail("number", o.Number)
	}

	for _, it := range o.Items {
		_, err := q.ExecContext(ctx, q.Rebind(`
			INSERT INTO order_items (`+orderItemColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
			it.ID, o.ID.String(), nullable(it.ProductID), it.ProductName, it.UnitPriceCents, it.Quantity)
		if err != nil {
			return errx.Wrap(err, "failed to create order item", errx.TypeInternal).
				WithDetail("number", o.Number)
		}
	}
	return nil
}

// FindByNumber busca un pedido por número con sus líneas
func (r *SQLOrderRepository) FindByNumber(ctx context.Context, number string) (*shop.Order, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var o shop.Order
	if err := sqlx.GetContext(ctx, q, &o, q.Rebind(`SELECT `+orderColumns+` FROM orders WHERE number = ?`), number); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shop.ErrOrderNotFound().WithDetail("number", number)
		}
		return nil, errx.Wrap(err, "failed to find order", errx.TypeInternal).
			WithDetail("number", number)
	}

	o.Items = []shop.OrderItem{}
	if err := sqlx.SelectContext(ctx, q, &o.Items,
		q.Rebind(`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = ? ORDER BY product_name ASC`),
		o.ID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list order items", errx.TypeInternal).
			WithDetail("number", number)
	}
	return &o, nil
}

// ListByCustomer lista los pedidos de un cliente, más recientes primero
func (r *SQLOrderRepository) ListByCustomer(ctx context.Context, customer kernel.UserID) ([]shop.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = ? ORDER BY created_at DESC`, customer.String())
}

// List lista todos los pedidos, más recientes primero
func (r *SQLOrderRepository) List(ctx context.Context) ([]shop.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (r *SQLOrderRepository) list(ctx context.Context, query string, args ...any) ([]shop.Order, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	orders := []shop.Order{}
	if err := sqlx.SelectContext(ctx, q, &orders, q.Rebind(query), args...); err != nil {
		return nil, errx.Wrap(err, "failed to list orders", errx.TypeInternal)
	}
	return orders, nil
}

// UpdateStatus cambia el estado de un pedido
func (r *SQLOrderRepository) UpdateStatus(ctx context.Context, id kernel.OrderID, status shop.OrderStatus) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, q.Rebind(`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), time.Now().UTC(), id.String())
	if err != nil {
		return errx.Wrap(err, "failed to update order status", errx.TypeInternal).
			WithDetail("order_id", id.String())
	}
	return checkAffected(result, shop.ErrOrderNotFound().WithDetail("order_id", id.String()))
}
