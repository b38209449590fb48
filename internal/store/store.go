package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/ledgersync/internal/ledger"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking (PRAGMA user_version):
// 0 - Initial schema (pre-migration)
// 1 - Local Store collections
// 2 - replica_transactions.mutation_seq and the pending index
// 3 - replica_transactions.attempted_seq
const currentSchemaVersion = ledger.DatasetVersion

// Store provides durable storage for the ledger and the sync replica.
type Store struct {
	db  *sql.DB
	ids ledger.IDGenerator
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the generator used for records inserted without an id.
// Default: ledger.UUIDv7Generator.
func WithIDGenerator(g ledger.IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithClock sets the time source used for replica timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:  db,
		ids: ledger.UUIDv7Generator{},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Scope returns collections bound directly to the database. Every call is
// its own implicit transaction. Do not use it from inside Atomic: the single
// connection is held by the open transaction.
func (s *Store) Scope() ledger.Scope {
	return &scope{q: s.db, ids: s.ids}
}

// Atomic runs fn in one write transaction covering every collection.
// The transaction commits if fn returns nil and rolls back otherwise,
// including when fn panics.
func (s *Store) Atomic(ctx context.Context, fn func(ledger.Scope) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("atomic: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&scope{q: tx, ids: s.ids}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("atomic: commit: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version > currentSchemaVersion {
		return fmt.Errorf("database version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}
	if version < 3 {
		if err := migrateToV3(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV2 adds mutation_seq to replica rows created before v2. New
// databases get the column from schema.sql; the index is created here for
// both because it depends on the column.
func migrateToV2(db *sql.DB) error {
	has, err := hasColumn(db, "replica_transactions", "mutation_seq")
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	if !has {
		if _, err := db.Exec(`ALTER TABLE replica_transactions ADD COLUMN mutation_seq INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("migrate to v2: add mutation_seq: %w", err)
		}
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_replica_pending
		ON replica_transactions(profile_id, sync_status, mutation_seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

// migrateToV3 adds attempted_seq. Rows from older databases count as never
// attempted.
func migrateToV3(db *sql.DB) error {
	has, err := hasColumn(db, "replica_transactions", "attempted_seq")
	if err != nil {
		return fmt.Errorf("migrate to v3: %w", err)
	}
	if has {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE replica_transactions ADD COLUMN attempted_seq INTEGER NOT NULL DEFAULT 0`); err != nil {
		return fmt.Errorf("migrate to v3: add attempted_seq: %w", err)
	}
	return nil
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
