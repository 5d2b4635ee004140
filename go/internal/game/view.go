package game

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store"
)

// Observable is what an observer needs to follow a game.
type Observable interface {
	State(ctx context.Context, gameID uuid.UUID) (*GameState, error)
	Subscribe(ctx context.Context, gameID uuid.UUID, tables ...models.ChangeTable) (*store.Subscription, error)
}

// View is an observer's local copy of one game. It only changes when a
// snapshot or a committed change event is applied, and ignores events it has
// already seen, so redelivery is harmless.
type View struct {
	mu      sync.RWMutex
	gameID  uuid.UUID
	game    models.Game
	players []models.Player
	drawn   []models.DrawnNumber
	numbers map[int]bool
}

// NewView creates an empty view of gameID.
func NewView(gameID uuid.UUID) *View {
	return &View{gameID: gameID, numbers: make(map[int]bool)}
}

// Load replaces the view with an authoritative snapshot.
func (v *View) Load(state *GameState) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.game = state.Game
	v.players = v.players[:0]
	for _, p := range state.Players {
		v.players = append(v.players, p.Player)
	}
	v.drawn = slices.Clone(state.DrawnNumbers)
	v.numbers = make(map[int]bool, len(v.drawn))
	for _, d := range v.drawn {
		v.numbers[d.Number] = true
	}
}

// Apply folds ev into the view and reports whether anything changed.
func (v *View) Apply(ev models.ChangeEvent) bool {
	if ev.GameID != v.gameID {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Type {
	case models.ChangeGameCreated, models.ChangeGameStatusChanged:
		if ev.Game == nil || ev.Game.Status == v.game.Status {
			return false
		}
		if v.game.Status == models.GameStatusFinished {
			return false
		}
		v.game = *ev.Game
		return true

	case models.ChangePlayerJoined, models.ChangeWinnerDeclared:
		if ev.Player == nil {
			return false
		}
		for i, p := range v.players {
			if p.ID == ev.Player.ID {
				if p.IsWinner == ev.Player.IsWinner {
					return false
				}
				v.players[i] = *ev.Player
				return true
			}
		}
		v.players = append(v.players, *ev.Player)
		return true

	case models.ChangeNumberDrawn:
		if ev.Number == nil || v.numbers[ev.Number.Number] {
			return false
		}
		v.numbers[ev.Number.Number] = true
		v.drawn = append(v.drawn, *ev.Number)
		slices.SortStableFunc(v.drawn, func(a, b models.DrawnNumber) int { return a.Seq - b.Seq })
		return true
	}

	return false
}

// Snapshot returns the current view as a GameState.
func (v *View) Snapshot() *GameState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return newGameState(v.game, v.players, v.drawn)
}

// Watch follows a game: it subscribes, loads a snapshot, then applies events
// until ctx is done, the stream ends or the game finishes. onUpdate is called
// with the initial snapshot and after every change.
func Watch(ctx context.Context, src Observable, gameID uuid.UUID, onUpdate func(*GameState)) error {
	sub, err := src.Subscribe(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Close()

	state, err := src.State(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to load game state: %w", err)
	}

	view := NewView(gameID)
	view.Load(state)
	onUpdate(view.Snapshot())
	if state.Game.Status == models.GameStatusFinished {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if !view.Apply(ev) {
				continue
			}
			snap := view.Snapshot()
			onUpdate(snap)
			if snap.Game.Status == models.GameStatusFinished {
				return nil
			}
		}
	}
}
