package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
)

// AuditRepository appends auth events to the auth_events table.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuthEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_events (kind, user_id, email, detail, at, processed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(event.Kind), event.UserID, event.Email, event.Detail,
		toMillis(event.At), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

// EventsFor returns the events recorded for userID, oldest first.
func (r *AuditRepository) EventsFor(ctx context.Context, userID string) ([]domain.AuthEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, user_id, email, detail, at FROM auth_events WHERE user_id = ? ORDER BY at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list auth events: %w", err)
	}
	defer rows.Close()

	var out []domain.AuthEvent
	for rows.Next() {
		var (
			e    domain.AuthEvent
			kind string
			at   int64
		)
		if err := rows.Scan(&kind, &e.UserID, &e.Email, &e.Detail, &at); err != nil {
			return nil, fmt.Errorf("scan auth event: %w", err)
		}
		e.Kind = domain.AuthEventKind(kind)
		e.At = fromMillis(at)
		out = append(out, e)
	}
	return out, rows.Err()
}
