package otc

import (
	"context"
	"errors"
	"math/big"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a row whose key already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrListingNotFound is returned by a strict projector when an execution or
	// cancellation references a listing that was never created.
	ErrListingNotFound = errors.New("listing not found")

	ErrUnknownEvent = errors.New("unknown event")
	ErrInvalidInput = errors.New("invalid input")
)

// Tx is the write side of the read-model. Every method runs inside the
// transaction opened by Store.WithTx.
type Tx interface {
	// InsertListing returns ErrDuplicateKey if the listing id exists.
	InsertListing(ctx context.Context, l *Listing) error

	// UpdateListing applies a partial patch and returns the number of rows it touched.
	UpdateListing(ctx context.Context, id *big.Int, patch ListingPatch) (int64, error)

	InsertExecution(ctx context.Context, e *ListingExecution) error
	InsertCancellation(ctx context.Context, c *ListingCancellation) error
	InsertFeeWithdrawal(ctx context.Context, w *FeeWithdrawal) error
	InsertFeeRecipientUpdate(ctx context.Context, u *FeeRecipientUpdate) error

	// GetCursor returns ErrNotFound if the contract has no cursor yet.
	GetCursor(ctx context.Context, contract string) (*Cursor, error)
	SetCursor(ctx context.Context, c *Cursor) error
}

// Store owns every row of the read-model.
type Store interface {
	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

type Page struct {
	Limit  int
	Offset int
}

type ListingFilter struct {
	Page

	Active *bool
	Seller string
	Token  string
}

type ExecutionFilter struct {
	Page

	ListingID *big.Int
	Seller    string
	Buyer     string
}

type CancellationFilter struct {
	Page

	ListingID *big.Int
}

// Reader is the query side used by the API.
type Reader interface {
	GetListing(ctx context.Context, id *big.Int) (*Listing, error)
	ListListings(ctx context.Context, f ListingFilter) ([]*Listing, error)
	ListExecutions(ctx context.Context, f ExecutionFilter) ([]*ListingExecution, error)
	ListCancellations(ctx context.Context, f CancellationFilter) ([]*ListingCancellation, error)
	ListFeeWithdrawals(ctx context.Context, p Page) ([]*FeeWithdrawal, error)
	ListFeeRecipientUpdates(ctx context.Context, p Page) ([]*FeeRecipientUpdate, error)
}
