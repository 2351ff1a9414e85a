// Package sqlstore persists personas, accounts and messages in SQLite or
// libSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite = "sqlite"
	DriverLibSQL = "libsql"
)

// DB owns the connection pool shared by the typed stores.
type DB struct {
	db     *sql.DB
	driver string
}

// Open connects with driver ("sqlite" or "libsql") and creates the schema.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = DriverSQLite
	}
	if dsn == "" {
		return nil, fmt.Errorf("store dsn is required for driver %s", driver)
	}

	var source string
	switch driver {
	case DriverSQLite:
		source = dsn
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	case DriverLibSQL:
		source = dsn
		if !strings.Contains(dsn, "://") && !strings.HasPrefix(dsn, "file:") {
			if err := ensureDir(dsn); err != nil {
				return nil, err
			}
			source = "file:" + dsn
		}
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// single writer avoids SQLITE_BUSY under concurrent requests
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &DB{db: db, driver: driver}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Printf("[store] opened %s database", driver)
	return store, nil
}

func ensureDir(path string) error {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

func (d *DB) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS personas (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			traits TEXT NOT NULL,
			creator TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			is_staff INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_tokens (
			key TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			persona_id TEXT NOT NULL,
			user_id TEXT,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id)`,
	}

	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Driver reports the active driver name.
func (d *DB) Driver() string {
	return d.driver
}

func (d *DB) Personas() *PersonaStore { return &PersonaStore{db: d.db} }
func (d *DB) Users() *UserStore       { return &UserStore{db: d.db} }
func (d *DB) Messages() *MessageStore { return &MessageStore{db: d.db} }

func toUnix(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromUnix(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}
