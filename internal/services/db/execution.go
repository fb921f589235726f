package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/anky/otc-indexer/pkg/otc"
)

type ExecutionDB struct {
	table
}

func NewExecutionDB(d Dialect, db queryer) *ExecutionDB {
	return &ExecutionDB{table{d, db}}
}

// CreateExecutionsTable creates the listing_executions table
func (db *ExecutionDB) CreateExecutionsTable(ctx context.Context) error {
	_, err := db.exec(ctx, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS listing_executions(
		id text NOT NULL PRIMARY KEY,
		listing_id %[1]s NOT NULL,
		seller text NOT NULL,
		buyer text NOT NULL,
		token text NOT NULL,
		token_amount %[1]s NOT NULL,
		usdc_price %[1]s NOT NULL,
		protocol_fee %[1]s NOT NULL,
		block_number bigint NOT NULL,
		transaction_hash text NOT NULL,
		"timestamp" bigint NOT NULL
	);
	`, db.dialect.uint256()))

	return err
}

func (db *ExecutionDB) CreateExecutionsTableIndexes(ctx context.Context) error {
	for _, q := range []string{
		`CREATE INDEX IF NOT EXISTS idx_listing_executions_listing_id ON listing_executions (listing_id);`,
		`CREATE INDEX IF NOT EXISTS idx_listing_executions_buyer ON listing_executions (buyer);`,
		`CREATE INDEX IF NOT EXISTS idx_listing_executions_seller ON listing_executions (seller);`,
		`CREATE INDEX IF NOT EXISTS idx_listing_executions_block ON listing_executions (block_number);`,
	} {
		if _, err := db.exec(ctx, q); err != nil {
			return err
		}
	}

	return nil
}

func (db *ExecutionDB) AddExecution(ctx context.Context, e *otc.ListingExecution) error {
	if e == nil || e.ID == "" || e.ListingID == nil {
		return otc.ErrInvalidInput
	}

	_, err := db.exec(ctx, `
	INSERT INTO listing_executions (id, listing_id, seller, buyer, token, token_amount, usdc_price, protocol_fee, block_number, transaction_hash, "timestamp")
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.ListingID.String(), e.Seller, e.Buyer, e.Token, decimal(e.TokenAmount), decimal(e.USDCPrice), decimal(e.ProtocolFee), int64(e.BlockNumber), e.TransactionHash, int64(e.Timestamp))

	return db.dialect.insertErr(err)
}

func scanExecution(row scanner) (*otc.ListingExecution, error) {
	var e otc.ListingExecution
	var listingID, amount, price, fee string
	var block, ts int64

	err := row.Scan(&e.ID, &listingID, &e.Seller, &e.Buyer, &e.Token, &amount, &price, &fee, &block, &e.TransactionHash, &ts)
	if err != nil {
		return nil, err
	}

	if e.ListingID, err = parseDecimal(listingID); err != nil {
		return nil, err
	}
	if e.TokenAmount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if e.USDCPrice, err = parseDecimal(price); err != nil {
		return nil, err
	}
	if e.ProtocolFee, err = parseDecimal(fee); err != nil {
		return nil, err
	}

	e.BlockNumber = uint64(block)
	e.Timestamp = uint64(ts)

	return &e, nil
}

// GetExecutions returns executions newest first
func (db *ExecutionDB) GetExecutions(ctx context.Context, f otc.ExecutionFilter) ([]*otc.ListingExecution, error) {
	w := &where{}
	if f.ListingID != nil {
		w.add("listing_id = $%d", f.ListingID.String())
	}
	if f.Seller != "" {
		w.add("seller = $%d", strings.ToLower(f.Seller))
	}
	if f.Buyer != "" {
		w.add("buyer = $%d", strings.ToLower(f.Buyer))
	}

	q := fmt.Sprintf(`
	SELECT id, listing_id, seller, buyer, token, token_amount, usdc_price, protocol_fee, block_number, transaction_hash, "timestamp"
	FROM listing_executions
	%s
	ORDER BY block_number DESC, id DESC
	%s
	`, w, w.page(f.Page))

	rows, err := db.query(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	executions := []*otc.ListingExecution{}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}

		executions = append(executions, e)
	}

	return executions, rows.Err()
}
