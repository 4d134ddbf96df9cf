package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx = interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction and hands the
// handle to repositories as qx. Repositories must accept a nil qx.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
//		t, err := txns.FindByReference(ctx, qx, ref)
//		...
//		return txns.Save(ctx, qx, t)
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
