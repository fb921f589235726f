package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/anky/otc-indexer/pkg/otc"
)

// CursorDB tracks how far each contract has been indexed.
type CursorDB struct {
	table
}

func NewCursorDB(d Dialect, db queryer) *CursorDB {
	return &CursorDB{table{d, db}}
}

// CreateCursorsTable creates a table to store sync cursors
func (db *CursorDB) CreateCursorsTable(ctx context.Context) error {
	_, err := db.exec(ctx, `
	CREATE TABLE IF NOT EXISTS sync_cursors(
		contract text NOT NULL PRIMARY KEY,
		state text NOT NULL,
		start_block bigint NOT NULL,
		last_block bigint NOT NULL,
		last_log_index bigint NOT NULL DEFAULT -1,
		created_at bigint NOT NULL,
		updated_at bigint NOT NULL
	);
	`)
	if err != nil {
		return err
	}

	_, err = db.exec(ctx, `
	CREATE INDEX IF NOT EXISTS idx_sync_cursors_state ON sync_cursors (state);
	`)

	return err
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// GetCursor gets the cursor of a contract, otc.ErrNotFound if there is none
func (db *CursorDB) GetCursor(ctx context.Context, contract string) (*otc.Cursor, error) {
	var c otc.Cursor
	var state string
	var created, updated int64

	err := db.queryRow(ctx, `
	SELECT contract, state, start_block, last_block, last_log_index, created_at, updated_at
	FROM sync_cursors
	WHERE contract = $1
	`, strings.ToLower(contract)).Scan(&c.Contract, &state, &c.StartBlock, &c.LastBlock, &c.LastLogIndex, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, otc.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.State = otc.CursorState(state)
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)

	return &c, nil
}

// SetCursor inserts or updates the cursor of a contract
func (db *CursorDB) SetCursor(ctx context.Context, c *otc.Cursor) error {
	if c == nil || c.Contract == "" {
		return otc.ErrInvalidInput
	}

	now := time.Now()
	created := c.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err := db.exec(ctx, `
	INSERT INTO sync_cursors (contract, state, start_block, last_block, last_log_index, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT(contract) DO UPDATE SET
		state = excluded.state,
		start_block = excluded.start_block,
		last_block = excluded.last_block,
		last_log_index = excluded.last_log_index,
		updated_at = excluded.updated_at
	`, strings.ToLower(c.Contract), string(c.State), c.StartBlock, c.LastBlock, c.LastLogIndex, toMillis(created), toMillis(now))

	return err
}
