package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/bingo/go/internal/sqlutil"
)

// ErrEventNotFound is returned when an outbox row does not exist.
var ErrEventNotFound = errors.New("outbox event not found")

const (
	fetchOutboxByID = `SELECT id, seq, game_id, event_type, payload, created_at, sent_at
FROM bingo_outbox WHERE id = $1`

	fetchUnsentOutbox = `SELECT id, seq, game_id, event_type, payload, created_at, sent_at
FROM bingo_outbox WHERE sent_at IS NULL ORDER BY seq LIMIT $1`

	markOutboxSent = `UPDATE bingo_outbox SET sent_at = now() WHERE id = $1 AND sent_at IS NULL`

	countPendingOutbox = `SELECT COUNT(*) FROM bingo_outbox WHERE sent_at IS NULL`
)

// Repository reads and acknowledges outbox rows over database/sql.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a Repository on db, opened with the lib/pq driver.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e       Event
		payload []byte
		sentAt  sql.Null[time.Time]
	)
	if err := row.Scan(&e.ID, &e.Seq, &e.GameID, &e.EventType, &payload, &e.CreatedAt, &sentAt); err != nil {
		return nil, err
	}
	e.Payload = payload
	e.SentAt = sqlutil.Timestamp(sentAt)
	return &e, nil
}

// FetchByID loads one outbox event.
func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, fetchOutboxByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outbox event by ID: %w", err)
	}
	return e, nil
}

// FetchUnsent returns up to limit unsent events in commit order.
func (r *Repository) FetchUnsent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// MarkSent records that the event reached the bus.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, markOutboxSent, id); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}

// CountPending returns the number of unsent events.
func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countPendingOutbox).Scan(&n)
	return n, err
}
