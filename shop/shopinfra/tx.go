package shopinfra

import (
	"context"
	"database/sql"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// tenantTx recuerda a qué tienda pertenece la transacción abierta
type tenantTx struct {
	tenant kernel.TenantID
	tx     *sqlx.Tx
}

// TenantTransactor implementa shop.Transactor sobre la base de la tienda activa
type TenantTransactor struct{}

func NewTenantTransactor() *TenantTransactor {
	return &TenantTransactor{}
}

// WithinTx abre una transacción en la base de la tienda activa; si ctx ya
// tiene una de la misma tienda, la reutiliza
func (t *TenantTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	id, err := scope.CurrentID(ctx)
	if err != nil {
		return err
	}
	if cur, ok := ctx.Value(txKey{}).(*tenantTx); ok && cur.tenant == id {
		return fn(ctx)
	}

	db, err := scope.DB(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin tenant transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, &tenantTx{tenant: id, tx: tx})); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit tenant transaction", errx.TypeInternal)
	}
	return nil
}

// conn retorna la transacción en curso de la tienda activa o su base.
// Sin tienda activa falla con tenancy.NoActiveContext.
func conn(ctx context.Context) (sqlx.ExtContext, error) {
	id, err := scope.CurrentID(ctx)
	if err != nil {
		return nil, err
	}
	if cur, ok := ctx.Value(txKey{}).(*tenantTx); ok && cur.tenant == id {
		return cur.tx, nil
	}
	return scope.DB(ctx)
}

func checkAffected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get affected rows", errx.TypeInternal)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func nullable[T ~string](v *T) any {
	if v == nil {
		return nil
	}
	return string(*v)
}
