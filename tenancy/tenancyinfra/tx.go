package tenancyinfra

import (
	"context"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// SQLTransactor implementa tenancy.Transactor sobre la base central
type SQLTransactor struct {
	db *sqlx.DB
}

// NewSQLTransactor crea el transactor de la base central
func NewSQLTransactor(db *sqlx.DB) *SQLTransactor {
	return &SQLTransactor{db: db}
}

// WithinTx ejecuta fn en una transacción; si ctx ya tiene una, la reutiliza
func (t *SQLTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit transaction", errx.TypeInternal)
	}

	return nil
}

// conn retorna la transacción en curso o la base
func conn(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}
