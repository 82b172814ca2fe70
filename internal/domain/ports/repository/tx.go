package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one ledger transaction and hands the
// backend-specific handle to repositories through tx.
//
// Repositories accept a nil tx and fall back to the non-transactional path.
// The Postgres handle is a pgx.Tx; the in-memory ledger passes nil and
// serialises the whole callback instead.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
