package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingo/go/internal/models"
)

// MinAutoDrawInterval is the shortest accepted interval between automatic draws.
const MinAutoDrawInterval = 500 * time.Millisecond

type autoDraw struct {
	actorID  uuid.UUID
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// AutoDrawer draws numbers on a timer on behalf of a game's admin. When the
// pool runs out before the winner cap is reached it finishes the game.
type AutoDrawer struct {
	app   *App
	clock clockwork.Clock

	mu    sync.Mutex
	games map[uuid.UUID]*autoDraw
}

// NewAutoDrawer creates an AutoDrawer. A nil clock means the real clock.
func NewAutoDrawer(app *App, clock clockwork.Clock) *AutoDrawer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AutoDrawer{
		app:   app,
		clock: clock,
		games: make(map[uuid.UUID]*autoDraw),
	}
}

// Start schedules a draw every interval until the game finishes or Stop is
// called. Starting an already scheduled game replaces its schedule.
func (d *AutoDrawer) Start(ctx context.Context, gameID, actorID uuid.UUID, interval time.Duration) error {
	if interval < MinAutoDrawInterval {
		return fmt.Errorf("interval must be at least %s: %w", MinAutoDrawInterval, ErrInvalidRequest)
	}

	game, err := d.app.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if actorID == uuid.Nil || actorID != game.AdminID {
		return ErrUnauthorized
	}
	switch game.Status {
	case models.GameStatusFinished:
		return ErrGameFinished
	case models.GameStatusPending:
		return ErrGameNotPlaying
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &autoDraw{
		actorID:  actorID,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	d.mu.Lock()
	prev := d.games[gameID]
	d.games[gameID] = run
	d.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}
	go d.loop(runCtx, gameID, run)

	log.Info().
		Str("game_id", gameID.String()).
		Dur("interval", interval).
		Msg("auto draw started")
	return nil
}

// Stop cancels the schedule of a game and reports whether one was running.
func (d *AutoDrawer) Stop(gameID uuid.UUID) bool {
	d.mu.Lock()
	run, ok := d.games[gameID]
	delete(d.games, gameID)
	d.mu.Unlock()

	if !ok {
		return false
	}
	run.cancel()
	<-run.done

	log.Info().Str("game_id", gameID.String()).Msg("auto draw stopped")
	return true
}

// Active reports whether a game has a running schedule.
func (d *AutoDrawer) Active(gameID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.games[gameID]
	return ok
}

// StopAll cancels every schedule. Used on shutdown.
func (d *AutoDrawer) StopAll() {
	d.mu.Lock()
	ids := make([]uuid.UUID, 0, len(d.games))
	for id := range d.games {
		ids = append(ids, id)
	}
	d.mu.Unlock()

	for _, id := range ids {
		d.Stop(id)
	}
}

func (d *AutoDrawer) loop(ctx context.Context, gameID uuid.UUID, run *autoDraw) {
	defer close(run.done)
	defer d.release(gameID, run)

	for {
		timer := d.clock.NewTimer(run.interval)
		select {
		case <-ctx.Done():
			stopAndDrainTimer(timer)
			return
		case <-timer.Chan():
		}

		if !d.tick(ctx, gameID, run.actorID) {
			return
		}
	}
}

// tick performs one draw and reports whether the schedule should continue.
func (d *AutoDrawer) tick(ctx context.Context, gameID, actorID uuid.UUID) bool {
	res, err := d.app.DrawNumber(ctx, gameID, actorID)
	switch {
	case err == nil:
		return res.Game.Status != models.GameStatusFinished
	case errors.Is(err, ErrPoolExhausted):
		if _, err := d.app.FinishGame(ctx, gameID, actorID); err != nil && !errors.Is(err, ErrGameFinished) {
			log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to finish exhausted game")
			return true
		}
		log.Info().Str("game_id", gameID.String()).Msg("number pool exhausted, game finished")
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrGameFinished), errors.Is(err, ErrGameNotFound),
		errors.Is(err, ErrGameNotPlaying), errors.Is(err, ErrUnauthorized):
		log.Info().Err(err).Str("game_id", gameID.String()).Msg("auto draw ended")
		return false
	default:
		// Sync layer failures are retried on the next tick.
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("auto draw failed")
		return true
	}
}

// release removes run from the active set unless it was already replaced.
func (d *AutoDrawer) release(gameID uuid.UUID, run *autoDraw) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.games[gameID] == run {
		delete(d.games, gameID)
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
