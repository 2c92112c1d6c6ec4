// Package audit persists security events to MySQL. It is the durable end
// of the signal pipeline: the monitor service decides what is worth
// recording, this package writes it down.
package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/keyxmakerx/gatekeeper/internal/monitor"
)

// Repository defines the data access contract for security events. All SQL
// lives in the concrete implementation -- no SQL leaks out.
type Repository interface {
	// Record appends a security event. Implements monitor.EventSink.
	Record(ctx context.Context, event monitor.Event) error

	// ListByUser returns the most recent events for a user, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]monitor.Event, error)

	// CountByUserAndKind returns how many events of a kind a user has
	// accumulated. Used by operators investigating lockouts.
	CountByUserAndKind(ctx context.Context, userID, kind string) (int, error)
}

// repository implements Repository with MySQL queries.
type repository struct {
	db *sql.DB
}

// NewRepository creates a new repository backed by the given DB pool.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

var _ monitor.EventSink = (*repository)(nil)

// Record inserts one event row.
func (r *repository) Record(ctx context.Context, event monitor.Event) error {
	query := `INSERT INTO security_events (user_id, kind, severity, ip_address, detail, occurred_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		event.UserID, event.Kind, string(event.Severity),
		event.IPAddress, event.Detail, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("inserting security event: %w", err)
	}
	return nil
}

// ListByUser returns a user's recent events ordered by most recent first.
func (r *repository) ListByUser(ctx context.Context, userID string, limit int) ([]monitor.Event, error) {
	query := `SELECT user_id, kind, severity, ip_address, detail, occurred_at
	          FROM security_events
	          WHERE user_id = ?
	          ORDER BY occurred_at DESC
	          LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing security events: %w", err)
	}
	defer rows.Close()

	var events []monitor.Event
	for rows.Next() {
		var e monitor.Event
		var severity string
		if err := rows.Scan(&e.UserID, &e.Kind, &severity, &e.IPAddress, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning security event: %w", err)
		}
		e.Severity = monitor.Severity(severity)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating security events: %w", err)
	}
	return events, nil
}

// CountByUserAndKind returns the number of stored events of one kind.
func (r *repository) CountByUserAndKind(ctx context.Context, userID, kind string) (int, error) {
	query := `SELECT COUNT(*) FROM security_events WHERE user_id = ? AND kind = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, kind).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting security events: %w", err)
	}
	return count, nil
}
