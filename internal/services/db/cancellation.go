package db

import (
	"context"
	"fmt"

	"github.com/anky/otc-indexer/pkg/otc"
)

type CancellationDB struct {
	table
}

func NewCancellationDB(d Dialect, db queryer) *CancellationDB {
	return &CancellationDB{table{d, db}}
}

// CreateCancellationsTable creates the listing_cancellations table
func (db *CancellationDB) CreateCancellationsTable(ctx context.Context) error {
	_, err := db.exec(ctx, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS listing_cancellations(
		id text NOT NULL PRIMARY KEY,
		listing_id %s NOT NULL,
		seller text NOT NULL,
		block_number bigint NOT NULL,
		transaction_hash text NOT NULL,
		"timestamp" bigint NOT NULL
	);
	`, db.dialect.uint256()))

	return err
}

func (db *CancellationDB) CreateCancellationsTableIndexes(ctx context.Context) error {
	_, err := db.exec(ctx, `
	CREATE INDEX IF NOT EXISTS idx_listing_cancellations_listing_id ON listing_cancellations (listing_id);
	`)

	return err
}

func (db *CancellationDB) AddCancellation(ctx context.Context, c *otc.ListingCancellation) error {
	if c == nil || c.ID == "" || c.ListingID == nil {
		return otc.ErrInvalidInput
	}

	_, err := db.exec(ctx, `
	INSERT INTO listing_cancellations (id, listing_id, seller, block_number, transaction_hash, "timestamp")
	VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.ListingID.String(), c.Seller, int64(c.BlockNumber), c.TransactionHash, int64(c.Timestamp))

	return db.dialect.insertErr(err)
}

// GetCancellations returns cancellations newest first
func (db *CancellationDB) GetCancellations(ctx context.Context, f otc.CancellationFilter) ([]*otc.ListingCancellation, error) {
	w := &where{}
	if f.ListingID != nil {
		w.add("listing_id = $%d", f.ListingID.String())
	}

	q := fmt.Sprintf(`
	SELECT id, listing_id, seller, block_number, transaction_hash, "timestamp"
	FROM listing_cancellations
	%s
	ORDER BY block_number DESC, id DESC
	%s
	`, w, w.page(f.Page))

	rows, err := db.query(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cancellations := []*otc.ListingCancellation{}
	for rows.Next() {
		var c otc.ListingCancellation
		var listingID string
		var block, ts int64

		err := rows.Scan(&c.ID, &listingID, &c.Seller, &block, &c.TransactionHash, &ts)
		if err != nil {
			return nil, err
		}

		if c.ListingID, err = parseDecimal(listingID); err != nil {
			return nil, err
		}
		c.BlockNumber = uint64(block)
		c.Timestamp = uint64(ts)

		cancellations = append(cancellations, &c)
	}

	return cancellations, rows.Err()
}
