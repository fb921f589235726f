package db

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"path/filepath"

	"github.com/anky/otc-indexer/internal/storage"
	"github.com/anky/otc-indexer/pkg/otc"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	dbBaseFolder   = "data"
	dbFileName     = "otc.db"
	dbConfigString = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_txlock=immediate"
)

type DB struct {
	dialect Dialect
	db      *sql.DB

	ListingDB      *ListingDB
	ExecutionDB    *ExecutionDB
	CancellationDB *CancellationDB
	FeeDB          *FeeDB
	CursorDB       *CursorDB
}

var (
	_ otc.Store  = (*DB)(nil)
	_ otc.Reader = (*DB)(nil)
)

// NewPostgresDB connects to postgres with the given connection string
func NewPostgresDB(ctx context.Context, connStr string) (*DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewDB(ctx, Postgres, db)
}

// NewSQLiteDB opens, or creates, the sqlite database under basePath/data
func NewSQLiteDB(ctx context.Context, basePath string) (*DB, error) {
	folderPath := filepath.Join(basePath, dbBaseFolder)

	if !storage.Exists(folderPath) {
		err := storage.CreateDir(folderPath)
		if err != nil {
			return nil, err
		}
	}

	path := filepath.Join(folderPath, dbFileName)

	return OpenSQLite(ctx, fmt.Sprintf("file:%s?%s", path, dbConfigString))
}

// OpenSQLite opens a sqlite database from a dsn, e.g. an in-memory one
func OpenSQLite(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite serializes writers, a single connection avoids busy errors
	db.SetMaxOpenConns(1)

	return NewDB(ctx, SQLite, db)
}

// NewDB wraps an open connection and makes sure every table exists
func NewDB(ctx context.Context, d Dialect, db *sql.DB) (*DB, error) {
	s := &DB{
		dialect:        d,
		db:             db,
		ListingDB:      NewListingDB(d, db),
		ExecutionDB:    NewExecutionDB(d, db),
		CancellationDB: NewCancellationDB(d, db),
		FeeDB:          NewFeeDB(d, db),
		CursorDB:       NewCursorDB(d, db),
	}

	err := s.Migrate(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate creates the tables and indexes that do not exist yet
func (d *DB) Migrate(ctx context.Context) error {
	steps := []func(context.Context) error{
		d.ListingDB.CreateListingsTable,
		d.ListingDB.CreateListingsTableIndexes,
		d.ExecutionDB.CreateExecutionsTable,
		d.ExecutionDB.CreateExecutionsTableIndexes,
		d.CancellationDB.CreateCancellationsTable,
		d.CancellationDB.CreateCancellationsTableIndexes,
		d.FeeDB.CreateFeeTables,
		d.FeeDB.CreateFeeTablesIndexes,
		d.CursorDB.CreateCursorsTable,
	}

	for _, step := range steps {
		if err := step(ctx); err != nil {
			return fmt.Errorf("failed to migrate %s database: %w", d.dialect, err)
		}
	}

	return nil
}

func (d *DB) Dialect() Dialect {
	return d.dialect
}

// WithTx runs fn in a database transaction, committing when it returns nil
func (d *DB) WithTx(ctx context.Context, fn func(tx otc.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = fn(newSQLTx(d.dialect, tx))
	if err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (d *DB) GetListing(ctx context.Context, id *big.Int) (*otc.Listing, error) {
	return d.ListingDB.GetListing(ctx, id)
}

func (d *DB) ListListings(ctx context.Context, f otc.ListingFilter) ([]*otc.Listing, error) {
	return d.ListingDB.GetListings(ctx, f)
}

func (d *DB) ListExecutions(ctx context.Context, f otc.ExecutionFilter) ([]*otc.ListingExecution, error) {
	return d.ExecutionDB.GetExecutions(ctx, f)
}

func (d *DB) ListCancellations(ctx context.Context, f otc.CancellationFilter) ([]*otc.ListingCancellation, error) {
	return d.CancellationDB.GetCancellations(ctx, f)
}

func (d *DB) ListFeeWithdrawals(ctx context.Context, p otc.Page) ([]*otc.FeeWithdrawal, error) {
	return d.FeeDB.GetFeeWithdrawals(ctx, p)
}

func (d *DB) ListFeeRecipientUpdates(ctx context.Context, p otc.Page) ([]*otc.FeeRecipientUpdate, error) {
	return d.FeeDB.GetFeeRecipientUpdates(ctx, p)
}

func (d *DB) GetCursor(ctx context.Context, contract string) (*otc.Cursor, error) {
	return d.CursorDB.GetCursor(ctx, contract)
}

// Close closes the db
func (d *DB) Close() error {
	return d.db.Close()
}
