package shopinfra

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/pkg/database"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/jmoiron/sqlx"
)

const customerColumns = `id, name, email, password_hash, is_admin, created_at, updated_at`

// SQLCustomerRepository implementación SQL de shop.CustomerRepository
type SQLCustomerRepository struct{}

func NewSQLCustomerRepository() *SQLCustomerRepository {
	return &SQLCustomerRepository{}
}

// Create inserta un cliente; el email se guarda en minúsculas
func (r *SQLCustomerRepository) Create(ctx context.Context, c shop.Customer) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(c.Email))
	_, err = q.ExecContext(ctx, q.Rebind(`
		INSERT INTO customers (`+customerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.ID.String(), c.Name, email, c.PasswordHash, c.IsAdmin, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return shop.ErrCustomerExists().WithDetail("email", email)
		}
		return errx.Wrap(err, "failed to create customer", errx.TypeInternal)
	}
	return nil
}

// FindByID busca un cliente por ID
func (r *SQLCustomerRepository) FindByID(ctx context.Context, id kernel.UserID) (*shop.Customer, error) {
	return r.findOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id.String())
}

// FindByEmail busca un cliente por email
func (r *SQLCustomerRepository) FindByEmail(ctx context.Context, email string) (*shop.Customer, error) {
	return r.findOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
}

func (r *SQLCustomerRepository) findOne(ctx context.Context, query string, arg string) (*shop.Customer, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var c shop.Customer
	if err := sqlx.GetContext(ctx, q, &c, q.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shop.ErrCustomerNotFound()
		}
		return nil, errx.Wrap(err, "failed to find customer", errx.TypeInternal)
	}
	return &c, nil
}

// List lista los clientes por fecha de alta
func (r *SQLCustomerRepository) List(ctx context.Context) ([]shop.Customer, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	customers := []shop.Customer{}
	if err := sqlx.SelectContext(ctx, q, &customers,
		`SELECT `+customerColumns+` FROM customers ORDER BY created_at ASC`); err != nil {
		return nil, errx.Wrap(err, "failed to list customers", errx.TypeInternal)
	}
	return customers, nil
}
