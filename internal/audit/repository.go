// Package audit records authentication and authorization decisions to
// the login_events table.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the audit trail.
const (
	ActionLoginSuccess  = "login_success"
	ActionLoginFailure  = "login_failure"
	ActionBearerSuccess = "bearer_success"
	ActionBearerFailure = "bearer_failure"
	ActionDenied        = "denied"
	ActionLogout        = "logout"
)

// Event is a single audit trail entry.
type Event struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	Username   string    `json:"username,omitempty"`
	AppID      string    `json:"app_id,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter controls which events to return.
type Filter struct {
	Action   string // optional: filter by action
	Username string // optional: filter by username
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains the paginated audit results.
type ListResult struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Recorder is the write side of the audit trail, consumed by the
// gateway.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// Repository defines the full audit trail interface.
type Repository interface {
	Recorder
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// Logger is the logging interface used to report write failures.
type Logger interface {
	Error(msg string, args ...any)
}

// Noop discards all events. Used when auditing is disabled.
type Noop struct{}

// Record does nothing.
func (Noop) Record(context.Context, Event) {}

// SQLiteRepository stores events in SQLite.
type SQLiteRepository struct {
	db     *sql.DB
	logger Logger
}

// NewSQLiteRepository creates an audit repository over db. Write
// failures are logged, never surfaced to the request path: auditing
// must not break authentication.
func NewSQLiteRepository(db *sql.DB, logger Logger) *SQLiteRepository {
	return &SQLiteRepository{db: db, logger: logger}
}

// Record inserts an event. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = "evt-" + uuid.NewString()[:8]
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_events (id, action, username, app_id, remote_addr, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.Action,
		nullableString(event.Username), nullableString(event.AppID), nullableString(event.RemoteAddr),
		event.CreatedAt.Format(time.RFC3339),
	)
	if err != nil && r.logger != nil {
		r.logger.Error("writing audit event", "action", event.Action, "error", err)
	}
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns events matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Username != "" {
		conditions = append(conditions, "username = ?")
		args = append(args, filter.Username)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// WHERE clause is assembled from parameterised conditions only.
	var total int
	countQuery := "SELECT COUNT(*) FROM login_events " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit events: %w", err)
	}

	query := "SELECT id, action, username, app_id, remote_addr, created_at FROM login_events " +
		where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	result := &ListResult{
		Events: []Event{},
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	for rows.Next() {
		var e Event
		var username, appID, remoteAddr sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Action, &username, &appID, &remoteAddr, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		e.Username = username.String
		e.AppID = appID.String
		e.RemoteAddr = remoteAddr.String
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			e.CreatedAt = t
		}
		result.Events = append(result.Events, e)
	}

	return result, rows.Err()
}
