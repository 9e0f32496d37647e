// Package database provides SQLite connectivity for Gray Logic Sentinel.
//
// The database backs two things: the settings store (one opaque blob per
// key, see internal/store) and the long-term security event history
// (internal/audit). Both schemas ship as embedded migrations.
//
// This package manages:
//   - Connection with WAL mode and busy timeout
//   - Embedded, versioned schema migrations
//   - Maintenance (VACUUM / PRAGMA optimize) for the optimize_performance command
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Database file permissions are set to 0600; it holds the bearer token.
package database
