package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type RelayConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to poll for missed events
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int // Max events to fetch per poll
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		NotifyChannel:    "bingo_outbox",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Relay moves committed outbox rows to the message bus. Rows are announced by
// pg_notify; a periodic poll picks up anything a lost connection missed.
//
// Delivery is at least once and not strictly ordered. A notification is
// relayed as soon as it arrives, so when row N failed to publish, row N+1
// may reach the bus before the poll retries N. Only the poll walks unsent
// rows in seq order. Observers dedupe by event id and apply numbers by seq
// (game.View.Apply), which makes either order converge on the same state.
type Relay struct {
	store     EventStore
	publisher Publisher
	cfg       RelayConfig

	mu        sync.Mutex
	running   bool
	processed uint64
	lastEvent time.Time
}

func NewRelay(store EventStore, publisher Publisher, cfg RelayConfig) *Relay {
	return &Relay{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Start listens for notifications until ctx is done.
func (r *Relay) Start(ctx context.Context) error {
	l := pq.NewListener(
		r.cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	defer l.Close()

	if err := l.Listen(r.cfg.NotifyChannel); err != nil {
		return fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", r.cfg.NotifyChannel).
		Dur("ping_interval", r.cfg.PingInterval).
		Dur("fallback_interval", r.cfg.FallbackInterval).
		Msg("outbox relay started")

	r.setRunning(true)
	defer r.setRunning(false)

	// Drain whatever accumulated while no relay was running.
	if err := r.processUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process unsent events")
	}

	pingTicker := time.NewTicker(r.cfg.PingInterval)
	fallbackTicker := time.NewTicker(r.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox relay shutting down")
			return nil
		case note := <-l.Notify:
			if note == nil {
				// connection was re-established, notifications may have been lost
				if err := r.processUnsent(ctx); err != nil {
					log.Error().Err(err).Msg("failed to process unsent events")
				}
				continue
			}
			if err := r.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Str("event_id", note.Extra).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			if err := r.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		case <-pingTicker.C:
			if err := l.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// Stats returns how many events were relayed and when the last one was.
func (r *Relay) Stats() (uint64, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed, r.lastEvent
}

// Running reports whether Start is listening.
func (r *Relay) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Relay) setRunning(running bool) {
	r.mu.Lock()
	r.running = running
	r.mu.Unlock()
}

// handleNotification relays the outbox row whose id is the notification payload.
func (r *Relay) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	event, err := r.store.FetchByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	if event.SentAt != nil {
		return nil
	}

	return r.relay(ctx, *event)
}

// processUnsent relays unsent rows in commit order. It stops at the first
// event that cannot be published so later events never overtake it.
func (r *Relay) processUnsent(ctx context.Context) error {
	unsent, err := r.store.FetchUnsent(ctx, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, event := range unsent {
		if err := r.relay(ctx, event); err != nil {
			return err
		}
	}
	if len(unsent) > 0 {
		log.Info().Int("events", len(unsent)).Msg("relayed unsent outbox events")
	}
	return nil
}

func (r *Relay) relay(ctx context.Context, event Event) error {
	if err := r.publishWithRetry(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}
	if err := r.store.MarkSent(ctx, event.ID); err != nil {
		return err
	}

	r.mu.Lock()
	r.processed++
	r.lastEvent = time.Now()
	r.mu.Unlock()

	log.Debug().
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Str("game_id", event.GameID.String()).
		Msg("published and marked event as sent")
	return nil
}

// publishWithRetry attempts to publish an outbox event with a linear backoff.
func (r *Relay) publishWithRetry(ctx context.Context, event Event) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := r.publisher.Publish(ctx, event)
		if err == nil {
			if attempt > 0 {
				log.Info().
					Int("attempt", attempt+1).
					Str("event_id", event.ID.String()).
					Msg("publish succeeded after retry")
			}
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return err
		}

		lastErr = err
		log.Error().
			Err(err).
			Int("attempt", attempt+1).
			Str("event_id", event.ID.String()).
			Msg("failed to publish, retrying")
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
