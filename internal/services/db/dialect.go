package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"

	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders into ?N for sqlite.
func (d Dialect) rebind(query string) string {
	if d != SQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?$1")
}

// uint256 is the column type used for 256 bit unsigned integers.
func (d Dialect) uint256() string {
	if d == SQLite {
		return "TEXT"
	}
	return "NUMERIC(78,0)"
}

// desc orders a uint256 column numerically, newest first.
func (d Dialect) desc(col string) string {
	if d == SQLite {
		return fmt.Sprintf("length(%s) DESC, %s DESC", col, col)
	}
	return col + " DESC"
}

func (d Dialect) isDuplicate(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}

	return false
}

// insertErr maps unique violations to otc.ErrDuplicateKey.
func (d Dialect) insertErr(err error) error {
	if err == nil {
		return nil
	}
	if d.isDuplicate(err) {
		return fmt.Errorf("%w: %v", otc.ErrDuplicateKey, err)
	}
	return err
}

// table wraps a queryer with the dialect it speaks.
type table struct {
	dialect Dialect
	db      queryer
}

func (t table) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.db.ExecContext(ctx, t.dialect.rebind(query), args...)
}

func (t table) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.db.QueryContext(ctx, t.dialect.rebind(query), args...)
}

func (t table) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.db.QueryRowContext(ctx, t.dialect.rebind(query), args...)
}

// where accumulates numbered conditions for a filtered select.
type where struct {
	clauses []string
	args    []any
}

// add appends a condition; expr holds one %d for the placeholder number.
func (w *where) add(expr string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(expr, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

// page appends LIMIT and OFFSET placeholders.
func (w *where) page(p otc.Page) string {
	limit := p.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	w.args = append(w.args, limit, offset)
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", len(w.args)-1, len(w.args))
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseDecimal(s string) (*big.Int, error) {
	// postgres may render a numeric with a zero scale suffix
	s = strings.TrimSuffix(s, ".0")

	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", s)
	}
	return v, nil
}
