// Package audit keeps the long-term security event history in the
// security_events table. The engine's in-memory ring holds only the most
// recent events; every event it records is appended here as well.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-sentinel/internal/security"
)

// timeFormat is fixed-width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000Z"

// Page size limits for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// SourceEngine marks events recorded by the security engine.
const SourceEngine = "engine"

// Entry is one stored security event.
type Entry struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Type   string    // optional: exact event type (auto_lock_triggered, device_unlocked, ...)
	Since  time.Time // optional: only entries at or after this time
	Limit  int       // default 50, max 200
	Offset int       // pagination offset
}

// ListResult contains a page of entries.
type ListResult struct {
	Events []Entry `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Repository defines the security event history operations.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores security events in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new event history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordEvent appends an engine event. It satisfies security.EventSink.
func (r *SQLiteRepository) RecordEvent(ctx context.Context, ev security.Event) error {
	return r.Create(ctx, &Entry{
		ID:        ev.ID,
		Type:      ev.Type,
		Source:    SourceEngine,
		Payload:   ev.Payload,
		CreatedAt: ev.Timestamp,
	})
}

// Create inserts an entry. The ID, Source and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "evt-" + uuid.NewString()
	}
	if entry.Source == "" {
		entry.Source = SourceEngine
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var payloadJSON *string
	if entry.Payload != nil {
		b, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("marshalling event payload: %w", err)
		}
		s := string(b)
		payloadJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO security_events (id, type, source, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		entry.ID, entry.Type, entry.Source, payloadJSON,
		entry.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting security event: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeFormat))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM security_events %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting security events: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, type, source, payload, created_at FROM security_events %s ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying security events: %w", err)
	}
	defer rows.Close()

	events := []Entry{}
	for rows.Next() {
		var entry Entry
		var payloadJSON sql.NullString
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.Type, &entry.Source, &payloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning security event: %w", err)
		}
		if payloadJSON.Valid && payloadJSON.String != "" {
			var payload map[string]any
			if json.Unmarshal([]byte(payloadJSON.String), &payload) == nil {
				entry.Payload = payload
			}
		}
		t, err := time.Parse(timeFormat, createdAt)
		if err != nil {
			t, err = time.Parse(time.RFC3339, createdAt)
			if err != nil {
				return nil, fmt.Errorf("parsing security event timestamp %q: %w", createdAt, err)
			}
		}
		entry.CreatedAt = t
		events = append(events, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating security events: %w", err)
	}

	return &ListResult{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
