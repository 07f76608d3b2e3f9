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
	"github.com/jmoiron/sqlx"
)

const (
	cartColumns     = `id, session_id, customer_id, created_at, updated_at`
	cartItemColumns = `ci.id, ci.cart_id, ci.product_id, ci.quantity,
		p.name AS product_name, p.price_cents, p.stock`
)

// SQLCartRepository implementación SQL de shop.CartRepository
type SQLCartRepository struct{}

func NewSQLCartRepository() *SQLCartRepository {
	return &SQLCartRepository{}
}

// FindBySession busca el carrito de una sesión de invitado
func (r *SQLCartRepository) FindBySession(ctx context.Context, session kernel.SessionID) (*shop.Cart, error) {
	return r.findOne(ctx, `SELECT `+cartColumns+` FROM carts WHERE session_id = ?`, session.String())
}

// FindByCustomer busca el carrito de un cliente
func (r *SQLCartRepository) FindByCustomer(ctx context.Context, customer kernel.UserID) (*shop.Cart, error) {
	return r.findOne(ctx, `SELECT `+cartColumns+` FROM carts WHERE customer_id = ?`, customer.String())
}

// findOne retorna nil sin error cuando no hay carrito
func (r *SQLCartRepository) findOne(ctx context.Context, query, arg string) (*shop.Cart, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var c shop.Cart
	if err := sqlx.GetContext(ctx, q, &c, q.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to find cart", errx.TypeInternal)
	}
	return &c, nil
}

// Create inserta un carrito vacío
func (r *SQLCartRepository) Create(ctx context.Context, c shop.Cart) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, q.Rebind(`
		INSERT INTO carts (`+cartColumns+`) VALUES (?, ?, ?, ?, ?)`),
		c.ID.String(), nullable(c.SessionID), nullable(c.CustomerID), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errx.Wrap(err, "cart already exists", errx.TypeConflict)
		}
		return errx.Wrap(err, "failed to create cart", errx.TypeInternal)
	}
	return nil
}

// AssignCustomer convierte un carrito de invitado en carrito del cliente
func (r *SQLCartRepository) AssignCustomer(ctx context.Context, id kernel.CartID, customer kernel.UserID) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE carts SET customer_id = ?, session_id = NULL, updated_at = ? WHERE id = ?`),
		customer.String(), time.Now().UTC(), id.String())
	if err != nil {
		return errx.Wrap(err, "failed to assign cart", errx.TypeInternal).
			WithDetail("cart_id", id.String())
	}
	return checkAffected(result, errx.New("cart not found", errx.TypeNotFound).WithDetail("cart_id", id.String()))
}

// Delete elimina un carrito con sus ítems
func (r *SQLCartRepository) Delete(ctx context.Context, id kernel.CartID) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM cart_items WHERE cart_id = ?`), id.String()); err != nil {
		return errx.Wrap(err, "failed to delete cart items", errx.TypeInternal)
	}
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM carts WHERE id = ?`), id.String()); err != nil {
		return errx.Wrap(err, "failed to delete cart", errx.TypeInternal)
	}
	return nil
}

// Items lista los ítems con los datos actuales del producto
func (r *SQLCartRepository) Items(ctx context.Context, id kernel.CartID) ([]shop.CartItem, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	items := []shop.CartItem{}
	err = sqlx.SelectContext(ctx, q, &items, q.Rebind(`
		SELECT `+cartItemColumns+`
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = ?
		ORDER BY p.name ASC`), id.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to list cart items", errx.TypeInternal).
			WithDetail("cart_id", id.String())
	}
	return items, nil
}

// FindItem busca la línea de un producto en el carrito; nil si no está
func (r *SQLCartRepository) FindItem(ctx context.Context, id kernel.CartID, product kernel.ProductID) (*shop.CartItem, error) {
	return r.findItem(ctx, `WHERE ci.cart_id = ? AND ci.product_id = ?`, id.String(), product.String())
}

// FindItemByID busca una línea por ID; nil si no existe
func (r *SQLCartRepository) FindItemByID(ctx context.Context, itemID string) (*shop.CartItem, error) {
	return r.findItem(ctx, `WHERE ci.id = ?`, itemID)
}

func (r *SQLCartRepository) findItem(ctx context.Context, where string, args ...any) (*shop.CartItem, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var it shop.CartItem
	err = sqlx.GetContext(ctx, q, &it, q.Rebind(`
		SELECT `+cartItemColumns+`
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		`+where), args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to find cart item", errx.TypeInternal)
	}
	return &it, nil
}

// AddItem inserta una línea nueva
func (r *SQLCartRepository) AddItem(ctx context.Context, item shop.CartItem) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, q.Rebind(`
		INSERT INTO cart_items (id, cart_id, product_id, quantity) VALUES (?, ?, ?, ?)`),
		item.ID, item.CartID.String(), item.ProductID.String(), item.Quantity)
	if err != nil {
		return errx.Wrap(err, "failed to add cart item", errx.TypeInternal).
			WithDetail("product_id", item.ProductID.String())
	}
	return r.touch(ctx, q, item.CartID)
}

// SetQuantity actualiza la cantidad de una línea
func (r *SQLCartRepository) SetQuantity(ctx context.Context, itemID string, quantity int) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, q.Rebind(`UPDATE cart_items SET quantity = ? WHERE id = ?`), quantity, itemID)
	if err != nil {
		return errx.Wrap(err, "failed to update cart item", errx.TypeInternal).
			WithDetail("item_id", itemID)
	}
	return checkAffected(result, shop.ErrCartItemNotFound().WithDetail("item_id", itemID))
}

// RemoveItem elimina una línea
func (r *SQLCartRepository) RemoveItem(ctx context.Context, itemID string) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM cart_items WHERE id = ?`), itemID)
	if err != nil {
		return errx.Wrap(err, "failed to remove cart item", errx.TypeInternal).
			WithDetail("item_id", itemID)
	}
	return checkAffected(result, shop.ErrCartItemNotFound().WithDetail("item_id", itemID))
}

// Clear vacía el carrito
func (r *SQLCartRepository) Clear(ctx context.Context, id kernel.CartID) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM cart_items WHERE cart_id = ?`), id.String()); err != nil {
		return errx.Wrap(err, "failed to clear cart", errx.TypeInternal).
			WithDetail("cart_id", id.String())
	}
	return r.touch(ctx, q, id)
}

// DeleteGuestCartsBefore borra carritos de invitado sin actividad desde cutoff
func (r *SQLCartRepository) DeleteGuestCartsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q, err := conn(ctx)
	if err != nil {
		return 0, err
	}

	stale := `SELECT id FROM carts WHERE customer_id IS NULL AND updated_at < ?`
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM cart_items WHERE cart_id IN (`+stale+`)`), cutoff.UTC()); err != nil {
		return 0, errx.Wrap(err, "failed to prune cart items", errx.TypeInternal)
	}
	result, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM carts WHERE customer_id IS NULL AND updated_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, errx.Wrap(err, "failed to prune carts", errx.TypeInternal)
	}
	return result.RowsAffected()
}

func (r *SQLCartRepository) touch(ctx context.Context, q sqlx.ExtContext, id kernel.CartID) error {
	if _, err := q.ExecContext(ctx, q.Rebind(`UPDATE carts SET updated_at = ? WHERE id = ?`),
		time.Now().UTC(), id.String()); err != nil {
		return errx.Wrap(err, "failed to touch cart", errx.TypeInternal)
	}
	return nil
}
