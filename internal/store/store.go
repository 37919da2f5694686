package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store is the collection run journal. Catalog data itself lives in flat
// CSV files; only run bookkeeping is kept here.
type Store struct {
	db *sql.DB
}

// pragmas applied on every connection open
var pragmas = []string{
	// NORMAL is safe with WAL mode
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA temp_store = MEMORY",
}

// Open opens the journal at path, creating it and its parent directory
// when needed, and brings the schema up to date
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	// one writer; collection runs are serial
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal migration failed: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SQLiteVersion reports the version of the embedded SQLite engine, or ""
// when it cannot be queried
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs PRAGMA integrity_check
func (s *Store) CheckIntegrity() error {
	var result string
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("journal is corrupt: %s", result)
	}
	return nil
}

// migrations are applied in order; entry i brings the schema to version i+1
var migrations = []struct {
	name string
	ddl  string
}{
	{"run journal", schemaV1},
	{"report indexes", schemaV2},
}

var currentSchemaVersion = len(migrations)

func (s *Store) migrate() error {
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}
	if version >= currentSchemaVersion {
		return nil
	}

	return s.Transaction(func(tx *sql.Tx) error {
		for i := version; i < len(migrations); i++ {
			m := migrations[i]
			if _, err := tx.Exec(m.ddl); err != nil {
				return fmt.Errorf("schema v%d (%s): %w", i+1, m.name, err)
			}
			if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
				return fmt.Errorf("failed to record schema v%d: %w", i+1, err)
			}
		}
		return nil
	})
}

// getSchemaVersion returns 0 for a fresh database
func (s *Store) getSchemaVersion() (int, error) {
	var exists int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'",
	).Scan(&exists)
	if err != nil || exists == 0 {
		return 0, err
	}

	var version int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	return version, err
}

// Transaction runs fn inside a transaction, committing when fn succeeds
func (s *Store) Transaction(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Run status values
const (
	RunRunning = "running"
	RunOK      = "ok"
	RunPartial = "partial" // some pages failed
	RunFailed  = "failed"  // every page failed
)

// Page status values
const (
	PageOK     = "ok"
	PageEmpty  = "empty"
	PageFailed = "failed"
)

// Run is one collection run against an upstream source
type Run struct {
	ID          string
	Source      string
	Domain      string
	Status      string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running
	PagesOK     int
	PagesFailed int
	Rows        int
	OutputPath  string
}

// PageResult is the outcome of fetching one page
type PageResult struct {
	RunID     string
	Page      int
	Status    string
	Rows      int
	Error     string
	FetchedAt time.Time
}
