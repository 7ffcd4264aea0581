// Package sqlite opens the SQLite database backing the slot and hold
// repositories and provides the context-carried transaction they share.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"escaperoom/pkg/db"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - initial tables
// 1 - partial UNIQUE index allowing one CONFIRMED hold per slot
const currentSchemaVersion = 1

// DB wraps a *sql.DB limited to a single connection. Every write goes through
// one connection, so transactions are serialized in-process; the DSN also asks
// for BEGIN IMMEDIATE so other processes sharing the file cannot interleave.
type DB struct {
	db *sql.DB
}

// Querier is the subset of *sql.DB and *sql.Tx used by repositories.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

var _ db.TransactionManager = (*DB)(nil)

// Open creates or opens the database at path, applies pragmas and migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := applyPragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{db: sqlDB}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
}

func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	if tx := txFromContext(ctx); tx != nil {
		return nil
	}
	return d.db.PingContext(ctx)
}

// Conn returns the transaction carried by ctx, or the pool when there is none.
// Repositories must use it for every statement; going to the pool directly
// from inside a transaction would wait forever on the single connection.
func (d *DB) Conn(ctx context.Context) Querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return d.db
}

func (d *DB) ExecuteTransaction(ctx context.Context, fn db.TxFunc) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// IsConstraintViolation reports whether err is a UNIQUE, CHECK or foreign key failure.
func IsConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func applyPragmas(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

func applySchema(sqlDB *sql.DB) error {
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(sqlDB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func runMigrations(sqlDB *sql.DB) error {
	var version int
	if err := sqlDB.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(sqlDB); err != nil {
			return err
		}
	}

	if _, err := sqlDB.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 backs the booked flag with a storage-level guarantee that a
// slot never carries two CONFIRMED holds.
func migrateToV1(sqlDB *sql.DB) error {
	_, err := sqlDB.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_holds_one_confirmed
		ON holds(slot_id) WHERE status = 'CONFIRMED'
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied PRAGMA user_version.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := d.Conn(ctx).QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}
