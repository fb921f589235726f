// Package memdb is an in-memory read-model store. Every transaction works on
// a private copy of the tables that replaces the shared state on commit.
package memdb

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"sync"

	com "github.com/anky/otc-indexer/internal/common"
	"github.com/anky/otc-indexer/pkg/otc"
)

type tables struct {
	listings      map[string]*otc.Listing // keyed by decimal listing id
	executions    map[string]*otc.ListingExecution
	cancellations map[string]*otc.ListingCancellation
	withdrawals   map[string]*otc.FeeWithdrawal
	recipients    map[string]*otc.FeeRecipientUpdate
	cursors       map[string]*otc.Cursor
}

func newTables() *tables {
	return &tables{
		listings:      map[string]*otc.Listing{},
		executions:    map[string]*otc.ListingExecution{},
		cancellations: map[string]*otc.ListingCancellation{},
		withdrawals:   map[string]*otc.FeeWithdrawal{},
		recipients:    map[string]*otc.FeeRecipientUpdate{},
		cursors:       map[string]*otc.Cursor{},
	}
}

func cloneMap[T any](m map[string]*T) map[string]*T {
	c := make(map[string]*T, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// clone copies the maps; rows are replaced, never mutated in place, so
// sharing the row pointers is safe.
func (t *tables) clone() *tables {
	return &tables{
		listings:      cloneMap(t.listings),
		executions:    cloneMap(t.executions),
		cancellations: cloneMap(t.cancellations),
		withdrawals:   cloneMap(t.withdrawals),
		recipients:    cloneMap(t.recipients),
		cursors:       cloneMap(t.cursors),
	}
}

// DB implements otc.Store and otc.Reader.
type DB struct {
	mu   sync.RWMutex
	data *tables

	// FailOn makes the named Tx method fail, for tests of rollback paths.
	FailOn map[string]error
}

var (
	_ otc.Store  = (*DB)(nil)
	_ otc.Reader = (*DB)(nil)
)

func New() *DB {
	return &DB{data: newTables()}
}

// WithTx runs fn against a copy of the tables and publishes the copy when fn
// succeeds. Transactions are serialized.
func (d *DB) WithTx(ctx context.Context, fn func(tx otc.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx := &memTx{data: d.data.clone(), failOn: d.FailOn}
	if err := fn(tx); err != nil {
		return err
	}

	d.data = tx.data
	return nil
}

type memTx struct {
	data   *tables
	failOn map[string]error
}

func (tx *memTx) fail(op string) error {
	if tx.failOn == nil {
		return nil
	}
	return tx.failOn[op]
}

func (tx *memTx) InsertListing(_ context.Context, l *otc.Listing) error {
	if err := tx.fail("InsertListing"); err != nil {
		return err
	}
	if l == nil || l.ID == nil {
		return otc.ErrInvalidInput
	}

	key := l.ID.String()
	if _, exists := tx.data.listings[key]; exists {
		return otc.ErrDuplicateKey
	}

	cp := *l
	tx.data.listings[key] = &cp
	return nil
}

func (tx *memTx) UpdateListing(_ context.Context, id *big.Int, patch otc.ListingPatch) (int64, error) {
	if err := tx.fail("UpdateListing"); err != nil {
		return 0, err
	}
	if id == nil {
		return 0, otc.ErrInvalidInput
	}

	l, ok := tx.data.listings[id.String()]
	if !ok {
		return 0, nil
	}

	cp := *l
	patch.Apply(&cp)
	tx.data.listings[id.String()] = &cp
	return 1, nil
}

func insertRow[T any](m map[string]*T, id string, row *T) error {
	if row == nil || id == "" {
		return otc.ErrInvalidInput
	}
	if _, exists := m[id]; exists {
		return otc.ErrDuplicateKey
	}

	cp := *row
	m[id] = &cp
	return nil
}

func (tx *memTx) InsertExecution(_ context.Context, e *otc.ListingExecution) error {
	if err := tx.fail("InsertExecution"); err != nil {
		return err
	}
	return insertRow(tx.data.executions, e.ID, e)
}

func (tx *memTx) InsertCancellation(_ context.Context, c *otc.ListingCancellation) error {
	if err := tx.fail("InsertCancellation"); err != nil {
		return err
	}
	return insertRow(tx.data.cancellations, c.ID, c)
}

func (tx *memTx) InsertFeeWithdrawal(_ context.Context, w *otc.FeeWithdrawal) error {
	if err := tx.fail("InsertFeeWithdrawal"); err != nil {
		return err
	}
	return insertRow(tx.data.withdrawals, w.ID, w)
}

func (tx *memTx) InsertFeeRecipientUpdate(_ context.Context, u *otc.FeeRecipientUpdate) error {
	if err := tx.fail("InsertFeeRecipientUpdate"); err != nil {
		return err
	}
	return insertRow(tx.data.recipients, u.ID, u)
}

func (tx *memTx) GetCursor(_ context.Context, contract string) (*otc.Cursor, error) {
	c, ok := tx.data.cursors[strings.ToLower(contract)]
	if !ok {
		return nil, otc.ErrNotFound
	}

	cp := *c
	return &cp, nil
}

func (tx *memTx) SetCursor(_ context.Context, c *otc.Cursor) error {
	if err := tx.fail("SetCursor"); err != nil {
		return err
	}
	if c == nil || c.Contract == "" {
		return otc.ErrInvalidInput
	}

	cp := *c
	cp.Contract = strings.ToLower(c.Contract)
	tx.data.cursors[cp.Contract] = &cp
	return nil
}

// Counts returns the number of rows per table, for tests.
func (d *DB) Counts() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return map[string]int{
		"listings":              len(d.data.listings),
		"listing_executions":    len(d.data.executions),
		"listing_cancellations": len(d.data.cancellations),
		"fee_withdrawals":       len(d.data.withdrawals),
		"fee_recipient_updates": len(d.data.recipients),
	}
}

func (d *DB) GetListing(_ context.Context, id *big.Int) (*otc.Listing, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	l, ok := d.data.listings[id.String()]
	if !ok {
		return nil, otc.ErrNotFound
	}

	cp := *l
	return &cp, nil
}

func (d *DB) GetCursor(ctx context.Context, contract string) (*otc.Cursor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return (&memTx{data: d.data}).GetCursor(ctx, contract)
}

func (d *DB) ListListings(_ context.Context, f otc.ListingFilter) ([]*otc.Listing, error) {
	d.mu.RLock()
	rows := values(d.data.listings)
	d.mu.RUnlock()

	rows = com.Filter(rows, func(l *otc.Listing) bool {
		if f.Active != nil && l.IsActive != *f.Active {
			return false
		}
		if f.Seller != "" && !com.IsSameHexAddress(l.Seller, f.Seller) {
			return false
		}
		if f.Token != "" && !com.IsSameHexAddress(l.Token, f.Token) {
			return false
		}
		return true
	})

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].BlockNumber != rows[j].BlockNumber {
			return rows[i].BlockNumber > rows[j].BlockNumber
		}
		return rows[i].ID.Cmp(rows[j].ID) > 0
	})

	return com.Paginate(rows, f.Limit, f.Offset), nil
}

func (d *DB) ListExecutions(_ context.Context, f otc.ExecutionFilter) ([]*otc.ListingExecution, error) {
	d.mu.RLock()
	rows := values(d.data.executions)
	d.mu.RUnlock()

	rows = com.Filter(rows, func(e *otc.ListingExecution) bool {
		if f.ListingID != nil && e.ListingID.Cmp(f.ListingID) != 0 {
			return false
		}
		if f.Seller != "" && !com.IsSameHexAddress(e.Seller, f.Seller) {
			return false
		}
		if f.Buyer != "" && !com.IsSameHexAddress(e.Buyer, f.Buyer) {
			return false
		}
		return true
	})

	sortByProvenance(rows, func(e *otc.ListingExecution) (uint64, string) { return e.BlockNumber, e.ID })

	return com.Paginate(rows, f.Limit, f.Offset), nil
}

func (d *DB) ListCancellations(_ context.Context, f otc.CancellationFilter) ([]*otc.ListingCancellation, error) {
	d.mu.RLock()
	rows := values(d.data.cancellations)
	d.mu.RUnlock()

	if f.ListingID != nil {
		rows = com.Filter(rows, func(c *otc.ListingCancellation) bool {
			return c.ListingID.Cmp(f.ListingID) == 0
		})
	}

	sortByProvenance(rows, func(c *otc.ListingCancellation) (uint64, string) { return c.BlockNumber, c.ID })

	return com.Paginate(rows, f.Limit, f.Offset), nil
}

func (d *DB) ListFeeWithdrawals(_ context.Context, p otc.Page) ([]*otc.FeeWithdrawal, error) {
	d.mu.RLock()
	rows := values(d.data.withdrawals)
	d.mu.RUnlock()

	sortByProvenance(rows, func(w *otc.FeeWithdrawal) (uint64, string) { return w.BlockNumber, w.ID })

	return com.Paginate(rows, p.Limit, p.Offset), nil
}

func (d *DB) ListFeeRecipientUpdates(_ context.Context, p otc.Page) ([]*otc.FeeRecipientUpdate, error) {
	d.mu.RLock()
	rows := values(d.data.recipients)
	d.mu.RUnlock()

	sortByProvenance(rows, func(u *otc.FeeRecipientUpdate) (uint64, string) { return u.BlockNumber, u.ID })

	return com.Paginate(rows, p.Limit, p.Offset), nil
}

// values copies the rows out of m so callers never share them with the store.
func values[T any](m map[string]*T) []*T {
	rows := make([]*T, 0, len(m))
	for _, v := range m {
		cp := *v
		rows = append(rows, &cp)
	}
	return rows
}

// sortByProvenance orders newest block first, then by id descending.
func sortByProvenance[T any](rows []*T, key func(*T) (uint64, string)) {
	sort.Slice(rows, func(i, j int) bool {
		bi, idi := key(rows[i])
		bj, idj := key(rows[j])
		if bi != bj {
			return bi > bj
		}
		return idi > idj
	})
}
