package db

import (
	"context"
	"fmt"

	"github.com/anky/otc-indexer/pkg/otc"
)

// FeeDB stores fee withdrawals and fee recipient updates.
type FeeDB struct {
	table
}

func NewFeeDB(d Dialect, db queryer) *FeeDB {
	return &FeeDB{table{d, db}}
}

func (db *FeeDB) CreateFeeTables(ctx context.Context) error {
	_, err := db.exec(ctx, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS fee_withdrawals(
		id text NOT NULL PRIMARY KEY,
		recipient text NOT NULL,
		amount %s NOT NULL,
		block_number bigint NOT NULL,
		transaction_hash text NOT NULL,
		"timestamp" bigint NOT NULL
	);
	`, db.dialect.uint256()))
	if err != nil {
		return err
	}

	_, err = db.exec(ctx, `
	CREATE TABLE IF NOT EXISTS fee_recipient_updates(
		id text NOT NULL PRIMARY KEY,
		old_recipient text NOT NULL,
		new_recipient text NOT NULL,
		block_number bigint NOT NULL,
		transaction_hash text NOT NULL,
		"timestamp" bigint NOT NULL
	);
	`)

	return err
}

func (db *FeeDB) CreateFeeTablesIndexes(ctx context.Context) error {
	for _, q := range []string{
		`CREATE INDEX IF NOT EXISTS idx_fee_withdrawals_block ON fee_withdrawals (block_number);`,
		`CREATE INDEX IF NOT EXISTS idx_fee_recipient_updates_block ON fee_recipient_updates (block_number);`,
	} {
		if _, err := db.exec(ctx, q); err != nil {
			return err
		}
	}

	return nil
}

func (db *FeeDB) AddFeeWithdrawal(ctx context.Context, w *otc.FeeWithdrawal) error {
	if w == nil || w.ID == "" {
		return otc.ErrInvalidInput
	}

	_, err := db.exec(ctx, `
	INSERT INTO fee_withdrawals (id, recipient, amount, block_number, transaction_hash, "timestamp")
	VALUES ($1, $2, $3, $4, $5, $6)
	`, w.ID, w.Recipient, decimal(w.Amount), int64(w.BlockNumber), w.TransactionHash, int64(w.Timestamp))

	return db.dialect.insertErr(err)
}

func (db *FeeDB) AddFeeRecipientUpdate(ctx context.Context, u *otc.FeeRecipientUpdate) error {
	if u == nil || u.ID == "" {
		return otc.ErrInvalidInput
	}

	_, err := db.exec(ctx, `
	INSERT INTO fee_recipient_updates (id, old_recipient, new_recipient, block_number, transaction_hash, "timestamp")
	VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.OldRecipient, u.NewRecipient, int64(u.BlockNumber), u.TransactionHash, int64(u.Timestamp))

	return db.dialect.insertErr(err)
}

func (db *FeeDB) GetFeeWithdrawals(ctx context.Context, p otc.Page) ([]*otc.FeeWithdrawal, error) {
	w := &where{}
	q := fmt.Sprintf(`
	SELECT id, recipient, amount, block_number, transaction_hash, "timestamp"
	FROM fee_withdrawals
	ORDER BY block_number DESC, id DESC
	%s
	`, w.page(p))

	rows, err := db.query(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	withdrawals := []*otc.FeeWithdrawal{}
	for rows.Next() {
		var fw otc.FeeWithdrawal
		var amount string
		var block, ts int64

		err := rows.Scan(&fw.ID, &fw.Recipient, &amount, &block, &fw.TransactionHash, &ts)
		if err != nil {
			return nil, err
		}

		if fw.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		fw.BlockNumber = uint64(block)
		fw.Timestamp = uint64(ts)

		withdrawals = append(withdrawals, &fw)
	}

	return withdrawals, rows.Err()
}

func (db *FeeDB) GetFeeRecipientUpdates(ctx context.Context, p otc.Page) ([]*otc.FeeRecipientUpdate, error) {
	w := &where{}
	q := fmt.Sprintf(`
	SELECT id, old_recipient, new_recipient, block_number, transaction_hash, "timestamp"
	FROM fee_recipient_updates
	ORDER BY block_number DESC, id DESC
	%s
	`, w.page(p))

	rows, err := db.query(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updates := []*otc.FeeRecipientUpdate{}
	for rows.Next() {
		var u otc.FeeRecipientUpdate
		var block, ts int64

		err := rows.Scan(&u.ID, &u.OldRecipient, &u.NewRecipient, &block, &u.TransactionHash, &ts)
		if err != nil {
			return nil, err
		}

		u.BlockNumber = uint64(block)
		u.Timestamp = uint64(ts)

		updates = append(updates, &u)
	}

	return updates, rows.Err()
}
