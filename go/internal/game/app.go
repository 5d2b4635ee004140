package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingo/go/internal/bingo"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store"
)

const maxCodeAttempts = 5

// SyncLayer defines what the game app needs from the persistence layer.
// Writes are visible to subscribers only once committed.
type SyncLayer interface {
	CreateGame(ctx context.Context, params store.CreateGameParams) (*models.Game, error)
	GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
	GetGameByCode(ctx context.Context, code string) (*models.Game, error)
	UpdateGameStatus(ctx context.Context, id uuid.UUID, status models.GameStatus) (*models.Game, error)
	InsertPlayer(ctx context.Context, params store.InsertPlayerParams) (*models.Player, error)
	ListPlayers(ctx context.Context, gameID uuid.UUID) ([]models.Player, error)
	// AppendDrawnNumber reports false when number was already drawn for the game.
	AppendDrawnNumber(ctx context.Context, gameID uuid.UUID, number int) (*models.DrawnNumber, bool, error)
	ListDrawnNumbers(ctx context.Context, gameID uuid.UUID) ([]models.DrawnNumber, error)
	RecordWinner(ctx context.Context, gameID, playerID uuid.UUID, rank int, progress models.Progress) (*models.Player, error)
	ListGamesByActor(ctx context.Context, actorID uuid.UUID, limit int) ([]models.Game, error)
	Subscribe(ctx context.Context, gameID uuid.UUID, tables ...models.ChangeTable) (*store.Subscription, error)
}

// TxManager runs fn in a single transaction of the sync layer.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// CardSource produces cards for joining players.
type CardSource interface {
	Generate(variant models.Variant) (models.Card, error)
}

// Drawer allocates the next number of a game.
type Drawer interface {
	Draw(gameID uuid.UUID, variant models.Variant, alreadyDrawn []int) (int, error)
}

// CreateGameRequest holds what an admin supplies to open a game.
type CreateGameRequest struct {
	AdminID      uuid.UUID           `json:"admin_id"`
	Variant      models.Variant      `json:"variant"`
	WinCondition models.WinCondition `json:"win_condition"`
	MaxWinners   int                 `json:"max_winners"`
}

// JoinRequest holds what a participant supplies to join.
type JoinRequest struct {
	Name   string     `json:"name"`
	UserID *uuid.UUID `json:"user_id,omitempty"`
}

// App owns one Machine per game, addressed by game id.
type App struct {
	sync   SyncLayer
	txm    TxManager
	cards  CardSource
	drawer Drawer
	codes  *bingo.CodeGenerator

	mu       sync.Mutex
	machines map[uuid.UUID]*Machine
}

// Option configures an App.
type Option func(*App)

// WithSeed makes card generation, draws and join codes reproducible.
func WithSeed(seed int64) Option {
	return func(a *App) {
		a.cards = bingo.NewCardGenerator(bingo.NewRand(seed))
		a.drawer = bingo.NewNumberDrawer(bingo.NewRand(seed + 1))
		a.codes = bingo.NewCodeGenerator(bingo.NewRand(seed + 2))
	}
}

// WithCards replaces the card generator.
func WithCards(cards CardSource) Option {
	return func(a *App) { a.cards = cards }
}

// WithDrawer replaces the number drawer.
func WithDrawer(drawer Drawer) Option {
	return func(a *App) { a.drawer = drawer }
}

// NewApp creates a new game App
func NewApp(syncLayer SyncLayer, txm TxManager, opts ...Option) *App {
	a := &App{
		sync:     syncLayer,
		txm:      txm,
		cards:    bingo.NewCardGenerator(nil),
		drawer:   bingo.NewNumberDrawer(nil),
		codes:    bingo.NewCodeGenerator(nil),
		machines: make(map[uuid.UUID]*Machine),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateGame opens a pending game administered by req.AdminID.
func (a *App) CreateGame(ctx context.Context, req CreateGameRequest) (*models.Game, error) {
	req, err := a.normalizeCreateGameRequest(req)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		game, err := a.sync.CreateGame(ctx, store.CreateGameParams{
			Code:         a.codes.Generate(),
			Variant:      req.Variant,
			MaxWinners:   req.MaxWinners,
			WinCondition: req.WinCondition,
			AdminID:      req.AdminID,
		})
		if errors.Is(err, store.ErrDuplicateCode) {
			log.Debug().Int("attempt", attempt).Msg("join code collision, retrying")
			continue
		}
		if err != nil {
			return nil, syncErr("create game", err)
		}

		log.Info().
			Str("game_id", game.ID.String()).
			Str("code", game.Code).
			Int("variant", int(game.Variant)).
			Str("win_condition", string(game.WinCondition)).
			Int("max_winners", game.MaxWinners).
			Msg("game created")
		return game, nil
	}

	return nil, syncErr("create game", fmt.Errorf("no free join code after %d attempts: %w", maxCodeAttempts, store.ErrDuplicateCode))
}

// GetGame retrieves a game by ID
func (a *App) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	game, err := a.sync.GetGame(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, syncErr("get game", err)
	}
	return game, nil
}

// Join registers a participant in the game with the given join code.
func (a *App) Join(ctx context.Context, code string, req JoinRequest) (*models.Player, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("validation failed: name is required: %w", ErrInvalidRequest)
	}
	if !bingo.ValidCode(code) {
		return nil, ErrGameNotFound
	}

	game, err := a.sync.GetGameByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, syncErr("get game by code", err)
	}

	player, err := a.machine(game.ID).Join(ctx, req)
	a.release(game.ID, err)
	return player, err
}

// StartGame moves a pending game to playing.
func (a *App) StartGame(ctx context.Context, gameID, actorID uuid.UUID) (*models.Game, error) {
	return a.track(gameID, func(m *Machine) (*models.Game, error) {
		return m.Start(ctx, actorID)
	})
}

// DrawNumber draws the next number of a playing game and records any winners.
func (a *App) DrawNumber(ctx context.Context, gameID, actorID uuid.UUID) (*DrawResult, error) {
	m := a.machine(gameID)
	res, err := m.Draw(ctx, actorID)
	a.release(gameID, err)
	if err != nil {
		return nil, err
	}
	if res.Game.Status == models.GameStatusFinished {
		a.forget(gameID)
	}
	return res, nil
}

// FinishGame ends a game regardless of winners.
func (a *App) FinishGame(ctx context.Context, gameID, actorID uuid.UUID) (*models.Game, error) {
	return a.track(gameID, func(m *Machine) (*models.Game, error) {
		return m.Finish(ctx, actorID)
	})
}

// State returns the authoritative view of a game.
func (a *App) State(ctx context.Context, gameID uuid.UUID) (*GameState, error) {
	m := a.machine(gameID)
	state, err := m.State(ctx)
	a.release(gameID, err)
	if err != nil {
		return nil, err
	}
	if state.Game.Status == models.GameStatusFinished {
		a.forget(gameID)
	}
	return state, nil
}

// History lists the games an actor administers or plays in, newest first.
func (a *App) History(ctx context.Context, actorID uuid.UUID, limit int) ([]models.Game, error) {
	if limit <= 0 {
		limit = 50
	}
	games, err := a.sync.ListGamesByActor(ctx, actorID, limit)
	if err != nil {
		return nil, syncErr("list games by actor", err)
	}
	return games, nil
}

// Subscribe opens a change stream for one game.
func (a *App) Subscribe(ctx context.Context, gameID uuid.UUID, tables ...models.ChangeTable) (*store.Subscription, error) {
	sub, err := a.sync.Subscribe(ctx, gameID, tables...)
	if err != nil {
		return nil, syncErr("subscribe", err)
	}
	return sub, nil
}

// ActiveMachines returns how many games currently hold a machine.
func (a *App) ActiveMachines() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.machines)
}

func (a *App) track(gameID uuid.UUID, fn func(m *Machine) (*models.Game, error)) (*models.Game, error) {
	m := a.machine(gameID)
	game, err := fn(m)
	a.release(gameID, err)
	if err != nil {
		return nil, err
	}
	if game.Status == models.GameStatusFinished {
		a.forget(gameID)
	}
	return game, nil
}

func (a *App) machine(gameID uuid.UUID) *Machine {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.machines[gameID]
	if !ok {
		m = newMachine(gameID, a)
		a.machines[gameID] = m
	}
	return m
}

// release drops machines of games that turned out not to exist or to be over.
func (a *App) release(gameID uuid.UUID, err error) {
	if errors.Is(err, ErrGameNotFound) || errors.Is(err, ErrGameFinished) {
		a.forget(gameID)
	}
}

func (a *App) forget(gameID uuid.UUID) {
	a.mu.Lock()
	delete(a.machines, gameID)
	a.mu.Unlock()
}

func (a *App) normalizeCreateGameRequest(req CreateGameRequest) (CreateGameRequest, error) {
	if req.AdminID == uuid.Nil {
		return req, fmt.Errorf("admin id is required: %w", ErrInvalidRequest)
	}
	if req.Variant == 0 {
		req.Variant = models.DefaultVariant
	}
	if !req.Variant.Valid() {
		return req, &bingo.InvalidVariantError{Variant: int(req.Variant)}
	}
	if req.WinCondition == "" {
		req.WinCondition = models.DefaultWinCondition
	}
	if !req.WinCondition.Valid() {
		return req, fmt.Errorf("unknown win condition %q: %w", req.WinCondition, ErrInvalidRequest)
	}
	if req.MaxWinners == 0 {
		req.MaxWinners = models.DefaultMaxWinners
	}
	if req.MaxWinners < 0 {
		return req, fmt.Errorf("max winners must be positive: %w", ErrInvalidRequest)
	}
	return req, nil
}
