package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/anky/otc-indexer/pkg/otc"
)

type ListingDB struct {
	table
}

func NewListingDB(d Dialect, db queryer) *ListingDB {
	return &ListingDB{table{d, db}}
}

// CreateListingsTable creates the listings table
func (db *ListingDB) CreateListingsTable(ctx context.Context) error {
	_, err := db.exec(ctx, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS listings(
		id %[1]s NOT NULL PRIMARY KEY,
		seller text NOT NULL,
		token text NOT NULL,
		token_amount %[1]s NOT NULL,
		usdc_price %[1]s NOT NULL,
		expires_at %[1]s NOT NULL,
		is_active boolean NOT NULL,
		block_number bigint NOT NULL,
		transaction_hash text NOT NULL,
		"timestamp" bigint NOT NULL
	);
	`, db.dialect.uint256()))

	return err
}

// CreateListingsTableIndexes creates the indexes used by the read api
func (db *ListingDB) CreateListingsTableIndexes(ctx context.Context) error {
	for _, q := range []string{
		`CREATE INDEX IF NOT EXISTS idx_listings_seller ON listings (seller);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_token ON listings (token);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_active_block ON listings (is_active, block_number);`,
	} {
		if _, err := db.exec(ctx, q); err != nil {
			return err
		}
	}

	return nil
}

// AddListing inserts a listing, failing with otc.ErrDuplicateKey if the id exists
func (db *ListingDB) AddListing(ctx context.Context, l *otc.Listing) error {
	if l == nil || l.ID == nil {
		return otc.ErrInvalidInput
	}

	_, err := db.exec(ctx, `
	INSERT INTO listings (id, seller, token, token_amount, usdc_price, expires_at, is_active, block_number, transaction_hash, "timestamp")
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, l.ID.String(), l.Seller, l.Token, decimal(l.TokenAmount), decimal(l.USDCPrice), decimal(l.ExpiresAt), l.IsActive, int64(l.BlockNumber), l.TransactionHash, int64(l.Timestamp))

	return db.dialect.insertErr(err)
}

// UpdateListing applies the set fields of patch and returns the affected row count
func (db *ListingDB) UpdateListing(ctx context.Context, id *big.Int, patch otc.ListingPatch) (int64, error) {
	if id == nil {
		return 0, otc.ErrInvalidInput
	}
	if patch.Empty() {
		return 0, nil
	}

	res, err := db.exec(ctx, `
	UPDATE listings
	SET is_active = $1
	WHERE id = $2
	`, *patch.IsActive, id.String())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

const listingColumns = `id, seller, token, token_amount, usdc_price, expires_at, is_active, block_number, transaction_hash, "timestamp"`

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(row scanner) (*otc.Listing, error) {
	var l otc.Listing
	var id, amount, price, expires string
	var block, ts int64

	err := row.Scan(&id, &l.Seller, &l.Token, &amount, &price, &expires, &l.IsActive, &block, &l.TransactionHash, &ts)
	if err != nil {
		return nil, err
	}

	if l.ID, err = parseDecimal(id); err != nil {
		return nil, err
	}
	if l.TokenAmount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if l.USDCPrice, err = parseDecimal(price); err != nil {
		return nil, err
	}
	if l.ExpiresAt, err = parseDecimal(expires); err != nil {
		return nil, err
	}

	l.BlockNumber = uint64(block)
	l.Timestamp = uint64(ts)

	return &l, nil
}

// GetListing returns otc.ErrNotFound when the listing does not exist
func (db *ListingDB) GetListing(ctx context.Context, id *big.Int) (*otc.Listing, error) {
	row := db.queryRow(ctx, `
	SELECT `+listingColumns+`
	FROM listings
	WHERE id = $1
	`, id.String())

	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, otc.ErrNotFound
	}

	return l, err
}

// GetListings returns listings newest first
func (db *ListingDB) GetListings(ctx context.Context, f otc.ListingFilter) ([]*otc.Listing, error) {
	w := &where{}
	if f.Active != nil {
		w.add("is_active = $%d", *f.Active)
	}
	if f.Seller != "" {
		w.add("seller = $%d", strings.ToLower(f.Seller))
	}
	if f.Token != "" {
		w.add("token = $%d", strings.ToLower(f.Token))
	}

	q := fmt.Sprintf(`
	SELECT %s
	FROM listings
	%s
	ORDER BY block_number DESC, %s
	%s
	`, listingColumns, w, db.dialect.desc("id"), w.page(f.Page))

	rows, err := db.query(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []*otc.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}

		listings = append(listings, l)
	}

	return listings, rows.Err()
}
