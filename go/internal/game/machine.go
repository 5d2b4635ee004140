package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingo/go/internal/bingo"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store"
)

var allowedTransitions = map[models.GameStatus][]models.GameStatus{
	models.GameStatusPending:  {models.GameStatusPlaying, models.GameStatusFinished},
	models.GameStatusPlaying:  {models.GameStatusFinished},
	models.GameStatusFinished: {},
}

// DrawResult is the outcome of one committed draw.
type DrawResult struct {
	Number     models.DrawnNumber `json:"number"`
	NewWinners []models.Player    `json:"new_winners"`
	Game       models.Game        `json:"game"`
}

// Machine is the state machine of a single game. Its mutex serializes every
// operation on the game within this process; decisions are always taken on
// state reloaded from the sync layer and the cached copy is only replaced
// after a write is confirmed.
type Machine struct {
	id  uuid.UUID
	app *App

	mu      sync.Mutex
	game    models.Game
	players []models.Player
	drawn   []models.DrawnNumber
}

func newMachine(id uuid.UUID, app *App) *Machine {
	return &Machine{id: id, app: app}
}

// Join generates a card and registers the participant.
func (m *Machine) Join(ctx context.Context, req JoinRequest) (*models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadGame(ctx); err != nil {
		return nil, err
	}
	if m.game.Status == models.GameStatusFinished {
		return nil, ErrGameFinished
	}

	card, err := m.app.cards.Generate(m.game.Variant)
	if err != nil {
		return nil, fmt.Errorf("failed to generate card: %w", err)
	}

	player, err := m.app.sync.InsertPlayer(ctx, store.InsertPlayerParams{
		GameID: m.id,
		UserID: req.UserID,
		Name:   req.Name,
		Card:   card,
	})
	if err != nil {
		return nil, syncErr("insert player", err)
	}
	m.players = append(m.players, *player)

	log.Info().
		Str("game_id", m.id.String()).
		Str("player_id", player.ID.String()).
		Str("name", player.Name).
		Str("status", string(m.game.Status)).
		Msg("player joined")
	return player, nil
}

// Start moves the game from pending to playing.
func (m *Machine) Start(ctx context.Context, actorID uuid.UUID) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refresh(ctx); err != nil {
		return nil, err
	}
	if err := m.authorize(actorID); err != nil {
		return nil, err
	}
	if err := validateStatusTransition(m.game.Status, models.GameStatusPlaying); err != nil {
		return nil, err
	}
	if len(m.players) < 2 {
		return nil, ErrInsufficientPlayers
	}

	game, err := m.app.sync.UpdateGameStatus(ctx, m.id, models.GameStatusPlaying)
	if err != nil {
		return nil, syncErr("update game status", err)
	}
	m.game = *game

	log.Info().
		Str("game_id", m.id.String()).
		Int("players", len(m.players)).
		Msg("game started")
	return game, nil
}

// Draw allocates the next number, evaluates every card and records winners.
// The number, the winners and an automatic finish commit together or not at all.
func (m *Machine) Draw(ctx context.Context, actorID uuid.UUID) (*DrawResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refresh(ctx); err != nil {
		return nil, err
	}
	if err := m.authorize(actorID); err != nil {
		return nil, err
	}
	switch m.game.Status {
	case models.GameStatusFinished:
		return nil, ErrGameFinished
	case models.GameStatusPending:
		return nil, ErrGameNotPlaying
	}

	numbers := models.Numbers(m.drawn)
	n, err := m.app.drawer.Draw(m.id, m.game.Variant, numbers)
	if err != nil {
		if errors.Is(err, bingo.ErrPoolExhausted) {
			log.Warn().Str("game_id", m.id.String()).Msg("number pool exhausted")
		}
		return nil, err
	}

	set := bingo.NewDrawnSet(append(numbers, n))
	winners := m.winners()
	var candidates []models.Player
	for _, p := range m.players {
		if !p.IsWinner && set.CheckWin(p.Card, m.game.WinCondition) {
			candidates = append(candidates, p)
		}
	}
	slots := max(m.game.MaxWinners-len(winners), 0)
	if len(candidates) > slots {
		log.Info().
			Str("game_id", m.id.String()).
			Int("candidates", len(candidates)).
			Int("slots", slots).
			Msg("more simultaneous winners than remaining slots, keeping join order")
		candidates = candidates[:slots]
	}
	finish := len(winners)+len(candidates) >= m.game.MaxWinners

	var (
		drawn      *models.DrawnNumber
		newWinners []models.Player
		game       = m.game
	)
	err = m.app.txm.Do(ctx, func(ctx context.Context) error {
		newWinners = newWinners[:0]

		d, inserted, err := m.app.sync.AppendDrawnNumber(ctx, m.id, n)
		if err != nil {
			return err
		}
		if !inserted {
			return errStaleDraw
		}
		drawn = d

		for i, p := range candidates {
			w, err := m.app.sync.RecordWinner(ctx, m.id, p.ID, len(winners)+i+1, set.Progress(p.Card))
			if err != nil {
				return err
			}
			newWinners = append(newWinners, *w)
		}

		if finish {
			g, err := m.app.sync.UpdateGameStatus(ctx, m.id, models.GameStatusFinished)
			if err != nil {
				return err
			}
			game = *g
		}
		return nil
	})
	if err != nil {
		return nil, syncErr("draw number", err)
	}

	m.drawn = append(m.drawn, *drawn)
	for _, w := range newWinners {
		m.replacePlayer(w)
	}
	m.game = game

	ev := log.Info().
		Str("game_id", m.id.String()).
		Int("number", drawn.Number).
		Int("seq", drawn.Seq)
	if len(newWinners) > 0 {
		names := make([]string, len(newWinners))
		for i, w := range newWinners {
			names[i] = w.Name
		}
		ev = ev.Strs("winners", names)
	}
	ev.Str("status", string(game.Status)).Msg("number drawn")

	return &DrawResult{Number: *drawn, NewWinners: newWinners, Game: game}, nil
}

// Finish ends the game from pending or playing.
func (m *Machine) Finish(ctx context.Context, actorID uuid.UUID) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadGame(ctx); err != nil {
		return nil, err
	}
	if err := m.authorize(actorID); err != nil {
		return nil, err
	}
	if err := validateStatusTransition(m.game.Status, models.GameStatusFinished); err != nil {
		return nil, err
	}

	game, err := m.app.sync.UpdateGameStatus(ctx, m.id, models.GameStatusFinished)
	if err != nil {
		return nil, syncErr("update game status", err)
	}
	m.game = *game

	log.Info().Str("game_id", m.id.String()).Msg("game finished by admin")
	return game, nil
}

// State returns a snapshot of the game reloaded from the sync layer.
func (m *Machine) State(ctx context.Context) (*GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refresh(ctx); err != nil {
		return nil, err
	}
	return newGameState(m.game, m.players, m.drawn), nil
}

func (m *Machine) loadGame(ctx context.Context) error {
	game, err := m.app.sync.GetGame(ctx, m.id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrGameNotFound
	}
	if err != nil {
		return syncErr("get game", err)
	}
	m.game = *game
	return nil
}

func (m *Machine) refresh(ctx context.Context) error {
	if err := m.loadGame(ctx); err != nil {
		return err
	}

	players, err := m.app.sync.ListPlayers(ctx, m.id)
	if err != nil {
		return syncErr("list players", err)
	}
	drawn, err := m.app.sync.ListDrawnNumbers(ctx, m.id)
	if err != nil {
		return syncErr("list drawn numbers", err)
	}

	m.players = players
	m.drawn = drawn
	return nil
}

func (m *Machine) authorize(actorID uuid.UUID) error {
	if actorID == uuid.Nil || actorID != m.game.AdminID {
		return ErrUnauthorized
	}
	return nil
}

// winners returns the current winners ordered by rank.
func (m *Machine) winners() []models.Player {
	var out []models.Player
	for _, p := range m.players {
		if p.IsWinner {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Player) int { return a.WinnerRank - b.WinnerRank })
	return out
}

func (m *Machine) replacePlayer(p models.Player) {
	for i := range m.players {
		if m.players[i].ID == p.ID {
			m.players[i] = p
			return
		}
	}
	m.players = append(m.players, p)
}

// validateStatusTransition validates if a status transition is allowed
func validateStatusTransition(from, to models.GameStatus) error {
	if from == models.GameStatusFinished {
		return ErrGameFinished
	}
	if slices.Contains(allowedTransitions[from], to) {
		return nil
	}
	return fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, from, to)
}
