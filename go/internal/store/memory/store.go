// Package memory is an in-process SyncLayer. It backs tests, the simulate
// command and single-node deployments without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store"
)

type gameRecord struct {
	game    models.Game
	players []models.Player
	drawn   []models.DrawnNumber
}

func (r *gameRecord) clone() *gameRecord {
	return &gameRecord{
		game:    r.game,
		players: append([]models.Player(nil), r.players...),
		drawn:   append([]models.DrawnNumber(nil), r.drawn...),
	}
}

type txKey struct{}

// tx is the state of an open transaction: a copy of every game touched so
// far and the events to publish on commit.
type tx struct {
	games  map[uuid.UUID]*gameRecord
	codes  map[string]uuid.UUID
	events []models.ChangeEvent
}

// Store keeps every game in memory.
type Store struct {
	mu    sync.Mutex
	games map[uuid.UUID]*gameRecord
	codes map[string]uuid.UUID
	users map[uuid.UUID]models.User

	feed  *store.Feed
	clock clockwork.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		games: make(map[uuid.UUID]*gameRecord),
		codes: make(map[string]uuid.UUID),
		users: make(map[uuid.UUID]models.User),
		feed:  store.NewFeed(),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Do runs fn in a transaction. Writes made through ctx are applied atomically
// when fn returns nil and discarded otherwise. Nested calls join the outer
// transaction.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(ctx)
	}

	t := &tx{
		games: make(map[uuid.UUID]*gameRecord),
		codes: make(map[string]uuid.UUID),
	}

	s.mu.Lock()
	err := fn(context.WithValue(ctx, txKey{}, t))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for id, rec := range t.games {
		s.games[id] = rec
	}
	for code, id := range t.codes {
		s.codes[code] = id
	}
	s.mu.Unlock()

	s.feed.Publish(t.events...)
	return nil
}

// write runs fn against the store, inside the caller's transaction if there is one.
// fn stages changes through the tx it is given.
func (s *Store) write(ctx context.Context, fn func(t *tx) error) error {
	if t, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(t)
	}
	return s.Do(ctx, func(ctx context.Context) error {
		return fn(ctx.Value(txKey{}).(*tx))
	})
}

// read runs fn with the store locked unless already inside a transaction.
func (s *Store) read(ctx context.Context, fn func(t *tx)) {
	if t, ok := ctx.Value(txKey{}).(*tx); ok {
		fn(t)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(nil)
}

// record returns the current version of a game, as seen by t if not nil.
func (s *Store) record(t *tx, id uuid.UUID) (*gameRecord, bool) {
	if t != nil {
		if rec, ok := t.games[id]; ok {
			return rec, true
		}
	}
	rec, ok := s.games[id]
	return rec, ok
}

// stage returns a copy of a game owned by t, for modification.
func (s *Store) stage(t *tx, id uuid.UUID) (*gameRecord, bool) {
	if rec, ok := t.games[id]; ok {
		return rec, true
	}
	rec, ok := s.games[id]
	if !ok {
		return nil, false
	}
	rec = rec.clone()
	t.games[id] = rec
	return rec, true
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

// CreateGame inserts a pending game.
func (s *Store) CreateGame(ctx context.Context, params store.CreateGameParams) (*models.Game, error) {
	var game models.Game
	err := s.write(ctx, func(t *tx) error {
		if _, taken := s.codes[params.Code]; taken {
			return store.ErrDuplicateCode
		}
		if _, taken := t.codes[params.Code]; taken {
			return store.ErrDuplicateCode
		}

		game = models.Game{
			ID:           uuid.New(),
			Code:         params.Code,
			Variant:      params.Variant,
			Status:       models.GameStatusPending,
			WinCondition: params.WinCondition,
			MaxWinners:   params.MaxWinners,
			AdminID:      params.AdminID,
			CreatedAt:    s.now(),
		}
		t.games[game.ID] = &gameRecord{game: game}
		t.codes[game.Code] = game.ID

		ev := models.NewChangeEvent(game.ID, models.ChangeGameCreated, game.CreatedAt)
		g := game
		ev.Game = &g
		t.events = append(t.events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// GetGame retrieves a game by ID
func (s *Store) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	var (
		game models.Game
		ok   bool
	)
	s.read(ctx, func(t *tx) {
		var rec *gameRecord
		if rec, ok = s.record(t, id); ok {
			game = rec.game
		}
	})
	if !ok {
		return nil, store.ErrNotFound
	}
	return &game, nil
}

// GetGameByCode retrieves a game by its join code
func (s *Store) GetGameByCode(ctx context.Context, code string) (*models.Game, error) {
	var id uuid.UUID
	var ok bool
	s.read(ctx, func(t *tx) {
		if t != nil {
			id, ok = t.codes[code]
		}
		if !ok {
			id, ok = s.codes[code]
		}
	})
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.GetGame(ctx, id)
}

// UpdateGameStatus sets the status and the matching timestamp.
func (s *Store) UpdateGameStatus(ctx context.Context, id uuid.UUID, status models.GameStatus) (*models.Game, error) {
	var game models.Game
	err := s.write(ctx, func(t *tx) error {
		rec, ok := s.stage(t, id)
		if !ok {
			return store.ErrNotFound
		}

		now := s.now()
		rec.game.Status = status
		switch status {
		case models.GameStatusPlaying:
			rec.game.StartedAt = &now
		case models.GameStatusFinished:
			rec.game.FinishedAt = &now
		}
		game = rec.game

		ev := models.NewChangeEvent(id, models.ChangeGameStatusChanged, now)
		g := game
		ev.Game = &g
		t.events = append(t.events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// InsertPlayer appends a player to a game.
func (s *Store) InsertPlayer(ctx context.Context, params store.InsertPlayerParams) (*models.Player, error) {
	var player models.Player
	err := s.write(ctx, func(t *tx) error {
		rec, ok := s.stage(t, params.GameID)
		if !ok {
			return store.ErrNotFound
		}

		player = models.Player{
			ID:       uuid.New(),
			GameID:   params.GameID,
			UserID:   params.UserID,
			Name:     params.Name,
			Card:     params.Card,
			JoinedAt: s.now(),
		}
		rec.players = append(rec.players, player)

		ev := models.NewChangeEvent(params.GameID, models.ChangePlayerJoined, player.JoinedAt)
		p := player
		ev.Player = &p
		t.events = append(t.events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// ListPlayers returns the players of a game in join order.
func (s *Store) ListPlayers(ctx context.Context, gameID uuid.UUID) ([]models.Player, error) {
	var (
		players []models.Player
		ok      bool
	)
	s.read(ctx, func(t *tx) {
		var rec *gameRecord
		if rec, ok = s.record(t, gameID); ok {
			players = append([]models.Player(nil), rec.players...)
		}
	})
	if !ok {
		return nil, store.ErrNotFound
	}
	return players, nil
}

// AppendDrawnNumber appends number unless it was already drawn for the game.
func (s *Store) AppendDrawnNumber(ctx context.Context, gameID uuid.UUID, number int) (*models.DrawnNumber, bool, error) {
	var (
		drawn    models.DrawnNumber
		inserted bool
	)
	err := s.write(ctx, func(t *tx) error {
		rec, ok := s.stage(t, gameID)
		if !ok {
			return store.ErrNotFound
		}
		for _, d := range rec.drawn {
			if d.Number == number {
				drawn = d
				return nil
			}
		}

		drawn = models.DrawnNumber{Number: number, Seq: len(rec.drawn) + 1, DrawnAt: s.now()}
		rec.drawn = append(rec.drawn, drawn)
		inserted = true

		ev := models.NewChangeEvent(gameID, models.ChangeNumberDrawn, drawn.DrawnAt)
		d := drawn
		ev.Number = &d
		t.events = append(t.events, ev)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &drawn, inserted, nil
}

// ListDrawnNumbers returns the draw sequence of a game in insertion order.
func (s *Store) ListDrawnNumbers(ctx context.Context, gameID uuid.UUID) ([]models.DrawnNumber, error) {
	var (
		drawn []models.DrawnNumber
		ok    bool
	)
	s.read(ctx, func(t *tx) {
		var rec *gameRecord
		if rec, ok = s.record(t, gameID); ok {
			drawn = append([]models.DrawnNumber(nil), rec.drawn...)
		}
	})
	if !ok {
		return nil, store.ErrNotFound
	}
	return drawn, nil
}

// RecordWinner marks a player as winner with the given rank.
func (s *Store) RecordWinner(ctx context.Context, gameID, playerID uuid.UUID, rank int, progress models.Progress) (*models.Player, error) {
	var player models.Player
	err := s.write(ctx, func(t *tx) error {
		rec, ok := s.stage(t, gameID)
		if !ok {
			return store.ErrNotFound
		}
		for i := range rec.players {
			if rec.players[i].ID != playerID {
				continue
			}
			rec.players[i].IsWinner = true
			rec.players[i].WinnerRank = rank
			player = rec.players[i]

			ev := models.NewChangeEvent(gameID, models.ChangeWinnerDeclared, s.now())
			p := player
			ev.Player = &p
			t.events = append(t.events, ev)
			return nil
		}
		return store.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// ListGamesByActor returns games administered or joined by actorID, newest first.
func (s *Store) ListGamesByActor(ctx context.Context, actorID uuid.UUID, limit int) ([]models.Game, error) {
	var games []models.Game
	s.read(ctx, func(_ *tx) {
		for _, rec := range s.games {
			if rec.game.AdminID == actorID || hasUser(rec.players, actorID) {
				games = append(games, rec.game)
			}
		}
	})

	sort.SliceStable(games, func(i, j int) bool {
		return games[i].CreatedAt.After(games[j].CreatedAt)
	})
	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

func hasUser(players []models.Player, userID uuid.UUID) bool {
	for _, p := range players {
		if p.UserID != nil && *p.UserID == userID {
			return true
		}
	}
	return false
}

// Subscribe streams committed changes of gameID (uuid.Nil for all games).
func (s *Store) Subscribe(ctx context.Context, gameID uuid.UUID, tables ...models.ChangeTable) (*store.Subscription, error) {
	return s.feed.Subscribe(ctx, gameID, tables...), nil
}

// Close ends every subscription.
func (s *Store) Close() {
	s.feed.Close()
}
