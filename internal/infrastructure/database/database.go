package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// memoryPath opens a private in-memory database.
	memoryPath = ":memory:"
)

// DB wraps a sql.DB connection with migration, health and maintenance helpers.
type DB struct {
	*sql.DB
	path string
}

// Config contains database configuration options.
type Config struct {
	// Path is the filesystem path to the SQLite database file, or ":memory:".
	// The directory will be created if it doesn't exist.
	Path string

	// WALMode enables Write-Ahead Logging for concurrent reads during writes.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int
}

// Open creates a new database connection with the specified configuration.
//
// It creates the parent directory, applies the connection pragmas,
// verifies the connection with a ping and restricts file permissions.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("opening database: %w", ErrEmptyPath)
	}

	connStr := memoryPath
	if cfg.Path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}

		// See: https://github.com/mattn/go-sqlite3#connection-string
		connStr = fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
			cfg.Path,
			cfg.BusyTimeout*msPerSecond,
		)
		if cfg.WALMode {
			connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
		}
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer. A single connection also keeps an
	// in-memory database alive for the lifetime of the pool.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	db := &DB{
		DB:   sqlDB,
		path: cfg.Path,
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if cfg.Path != memoryPath {
		_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // File may not exist until first write
	}

	return db, nil
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database is accessible and functioning.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Optimize compacts the database file and refreshes query planner
// statistics. It returns the file size in bytes before and after.
// In-memory databases report zero sizes.
func (db *DB) Optimize(ctx context.Context) (before, after int64, err error) {
	before = db.fileSize()

	if _, err := db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return before, before, fmt.Errorf("running PRAGMA optimize: %w", err)
	}
	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return before, before, fmt.Errorf("running VACUUM: %w", err)
	}

	return before, db.fileSize(), nil
}

// fileSize returns the size of the database file, or 0 if unknown.
func (db *DB) fileSize() int64 {
	if db.path == "" || db.path == memoryPath {
		return 0
	}
	info, err := os.Stat(db.path)
	if err != nil {
		return 0
	}
	return info.Size()
}
