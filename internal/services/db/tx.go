package db

import (
	"context"
	"math/big"

	"github.com/anky/otc-indexer/pkg/otc"
)

// sqlTx binds every table to one *sql.Tx.
type sqlTx struct {
	listings      *ListingDB
	executions    *ExecutionDB
	cancellations *CancellationDB
	fees          *FeeDB
	cursors       *CursorDB
}

var _ otc.Tx = (*sqlTx)(nil)

func newSQLTx(d Dialect, q queryer) *sqlTx {
	return &sqlTx{
		listings:      NewListingDB(d, q),
		executions:    NewExecutionDB(d, q),
		cancellations: NewCancellationDB(d, q),
		fees:          NewFeeDB(d, q),
		cursors:       NewCursorDB(d, q),
	}
}

func (tx *sqlTx) InsertListing(ctx context.Context, l *otc.Listing) error {
	return tx.listings.AddListing(ctx, l)
}

func (tx *sqlTx) UpdateListing(ctx context.Context, id *big.Int, patch otc.ListingPatch) (int64, error) {
	return tx.listings.UpdateListing(ctx, id, patch)
}

func (tx *sqlTx) InsertExecution(ctx context.Context, e *otc.ListingExecution) error {
	return tx.executions.AddExecution(ctx, e)
}

func (tx *sqlTx) InsertCancellation(ctx context.Context, c *otc.ListingCancellation) error {
	return tx.cancellations.AddCancellation(ctx, c)
}

func (tx *sqlTx) InsertFeeWithdrawal(ctx context.Context, w *otc.FeeWithdrawal) error {
	return tx.fees.AddFeeWithdrawal(ctx, w)
}

func (tx *sqlTx) InsertFeeRecipientUpdate(ctx context.Context, u *otc.FeeRecipientUpdate) error {
	return tx.fees.AddFeeRecipientUpdate(ctx, u)
}

func (tx *sqlTx) GetCursor(ctx context.Context, contract string) (*otc.Cursor, error) {
	return tx.cursors.GetCursor(ctx, contract)
}

func (tx *sqlTx) SetCursor(ctx context.Context, c *otc.Cursor) error {
	return tx.cursors.SetCursor(ctx, c)
}
