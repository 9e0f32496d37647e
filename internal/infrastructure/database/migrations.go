package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MigrationsFS holds the schema files. The migrations package sets it
// from an embedded filesystem at init time.
var MigrationsFS fs.FS

// MigrationsDir is the directory within MigrationsFS holding the files.
var MigrationsDir = "."

// migration is one YYYYMMDD_HHMMSS_name.up.sql file. The matching
// .down.sql files ship for manual rollback and are never applied here.
type migration struct {
	version string
	name    string
	sql     string
}

// Migrate applies pending migrations oldest first, each in its own
// transaction. A failure leaves earlier migrations committed and a
// re-run continues from the one that failed.
func (db *DB) Migrate(ctx context.Context) error {
	pending, err := db.pendingMigrations(ctx)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// SchemaVersion returns the newest applied migration version, or "" for
// a database that has never been migrated.
func (db *DB) SchemaVersion(ctx context.Context) (string, error) {
	if err := db.ensureMigrationsTable(ctx); err != nil {
		return "", err
	}
	var version sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return "", fmt.Errorf("reading schema version: %w", err)
	}
	return version.String, nil
}

func (db *DB) pendingMigrations(ctx context.Context) ([]migration, error) {
	if err := db.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}
	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	all, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	var pending []migration
	for _, m := range all {
		if !applied[m.version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

func (db *DB) ensureMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}
	return nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return applied, nil
}

func (db *DB) apply(ctx context.Context, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads the up migrations from MigrationsFS, oldest first.
func loadMigrations() ([]migration, error) {
	if MigrationsFS == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", MigrationsDir, err)
	}

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}
		body, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		out = append(out, migration{version: version, name: name, sql: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// parseMigrationFilename splits "20260301_120000_settings_store.up.sql"
// into version "20260301_120000" and name "settings_store". Anything
// that is not a well-formed up migration reports ok=false.
func parseMigrationFilename(filename string) (version, name string, ok bool) {
	base, isUp := strings.CutSuffix(filename, ".up.sql")
	if !isUp {
		return "", "", false
	}

	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 || len(parts[0]) != 8 || len(parts[1]) != 6 {
		return "", "", false
	}
	version = parts[0] + "_" + parts[1]
	name = version
	if len(parts) == 3 && parts[2] != "" {
		name = parts[2]
	}
	return version, name, true
}
