package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingo/go/internal/models"
)

const (
	catchUpBatch = 500
	seenWindow   = 4096
)

// Listen feeds committed change events into the store's subscriptions until
// ctx is done. It LISTENs on NotifyChannel through lib/pq and, after a lost
// connection, replays outbox rows it has not seen yet.
func (s *Store) Listen(ctx context.Context, dsn string) error {
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Error().Err(err).Msg("change listener event")
		}
	})
	defer l.Close()

	if err := l.Listen(NotifyChannel); err != nil {
		return fmt.Errorf("failed to listen to channel: %w", err)
	}

	var lastSeq int64
	if err := s.pool.QueryRow(ctx, "SELECT COALESCE(MAX(seq), 0) FROM bingo_outbox").Scan(&lastSeq); err != nil {
		return fmt.Errorf("failed to read outbox position: %w", err)
	}

	fl := &feedListener{store: s, lastSeq: lastSeq, seen: make(map[uuid.UUID]struct{}, seenWindow)}
	log.Info().Str("channel", NotifyChannel).Int64("from_seq", lastSeq).Msg("change listener started")

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("change listener shutting down")
			return nil
		case note := <-l.Notify:
			if note == nil {
				if err := fl.catchUp(ctx); err != nil {
					log.Error().Err(err).Msg("failed to replay outbox after reconnect")
				}
				continue
			}
			if err := fl.handle(ctx, note.Extra); err != nil {
				log.Error().Err(err).Str("event_id", note.Extra).Msg("failed to handle change notification")
			}
		case <-ping.C:
			if err := l.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping change listener")
			}
		}
	}
}

type feedListener struct {
	store   *Store
	lastSeq int64
	seen    map[uuid.UUID]struct{}
	order   []uuid.UUID
}

func (f *feedListener) handle(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event id in notification: %w", err)
	}
	if _, ok := f.seen[id]; ok {
		return nil
	}

	var (
		seq     int64
		payload []byte
	)
	err = f.store.pool.QueryRow(ctx, "SELECT seq, payload FROM bingo_outbox WHERE id = $1", id).Scan(&seq, &payload)
	if err != nil {
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	return f.publish(id, seq, payload)
}

func (f *feedListener) catchUp(ctx context.Context) error {
	rows, err := f.store.pool.Query(ctx,
		"SELECT id, seq, payload FROM bingo_outbox WHERE seq > $1 ORDER BY seq LIMIT $2",
		f.lastSeq, catchUpBatch,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id      uuid.UUID
			seq     int64
			payload []byte
		)
		if err := rows.Scan(&id, &seq, &payload); err != nil {
			return err
		}
		if _, ok := f.seen[id]; ok {
			continue
		}
		if err := f.publish(id, seq, payload); err != nil {
			log.Error().Err(err).Str("event_id", id.String()).Msg("skipping undecodable outbox event")
		}
		n++
	}
	if n > 0 {
		log.Info().Int("events", n).Msg("replayed outbox events after reconnect")
	}
	return rows.Err()
}

func (f *feedListener) publish(id uuid.UUID, seq int64, payload []byte) error {
	var ev models.ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to decode change event: %w", err)
	}

	f.remember(id)
	if seq > f.lastSeq {
		f.lastSeq = seq
	}
	f.store.feed.Publish(ev)
	return nil
}

// remember keeps the last seenWindow event ids.
func (f *feedListener) remember(id uuid.UUID) {
	f.seen[id] = struct{}{}
	f.order = append(f.order, id)
	if len(f.order) > seenWindow {
		delete(f.seen, f.order[0])
		f.order = f.order[1:]
	}
}
