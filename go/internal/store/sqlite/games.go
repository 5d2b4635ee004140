package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/sqlutil"
	"github.com/mcdev12/bingo/go/internal/store"
)

var gameColumns = []string{
	"id", "code", "variant", "status", "win_condition", "max_winners",
	"admin_id", "created_at", "started_at", "finished_at",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (*models.Game, error) {
	var (
		g            models.Game
		variant      int
		status       string
		winCondition string
		startedAt    sql.Null[time.Time]
		finishedAt   sql.Null[time.Time]
	)
	err := row.Scan(
		&g.ID, &g.Code, &variant, &status, &winCondition, &g.MaxWinners,
		&g.AdminID, &g.CreatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	g.Variant = models.Variant(variant)
	g.Status = models.GameStatus(status)
	g.WinCondition = models.WinCondition(winCondition)
	g.CreatedAt = g.CreatedAt.UTC()
	g.StartedAt = sqlutil.Timestamp(startedAt)
	g.FinishedAt = sqlutil.Timestamp(finishedAt)
	return &g, nil
}

func (s *Store) selectGame(ctx context.Context, where sq.Sqlizer) (*models.Game, error) {
	query, args, err := builder.Select(gameColumns...).From("bingo_games").Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	return scanGame(s.conn(ctx).QueryRowContext(ctx, query, args...))
}

// CreateGame inserts a pending game.
func (s *Store) CreateGame(ctx context.Context, params store.CreateGameParams) (*models.Game, error) {
	game := &models.Game{
		ID:           uuid.New(),
		Code:         params.Code,
		Variant:      params.Variant,
		Status:       models.GameStatusPending,
		WinCondition: params.WinCondition,
		MaxWinners:   params.MaxWinners,
		AdminID:      params.AdminID,
		CreatedAt:    s.now(),
	}

	err := s.Do(ctx, func(ctx context.Context) error {
		query, args, err := builder.Insert("bingo_games").
			Columns("id", "code", "variant", "status", "win_condition", "max_winners", "admin_id", "created_at").
			Values(game.ID, game.Code, int(game.Variant), string(game.Status),
				string(game.WinCondition), game.MaxWinners, game.AdminID, game.CreatedAt).
			ToSql()
		if err != nil {
			return err
		}

		_, err = s.conn(ctx).ExecContext(ctx, query, args...)
		if isUniqueViolation(err, "bingo_games.code") {
			return store.ErrDuplicateCode
		}
		if err != nil {
			return fmt.Errorf("failed to insert game: %w", err)
		}

		ev := models.NewChangeEvent(game.ID, models.ChangeGameCreated, game.CreatedAt)
		g := *game
		ev.Game = &g
		s.emit(ctx, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

// GetGame retrieves a game by ID
func (s *Store) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	return s.selectGame(ctx, sq.Eq{"id": id})
}

// GetGameByCode retrieves a game by its join code
func (s *Store) GetGameByCode(ctx context.Context, code string) (*models.Game, error) {
	return s.selectGame(ctx, sq.Eq{"code": code})
}

// UpdateGameStatus sets the status and the matching timestamp.
func (s *Store) UpdateGameStatus(ctx context.Context, id uuid.UUID, status models.GameStatus) (*models.Game, error) {
	var game *models.Game
	err := s.Do(ctx, func(ctx context.Context) error {
		at := s.now()
		update := builder.Update("bingo_games").Set("status", string(status)).Where(sq.Eq{"id": id})
		switch status {
		case models.GameStatusPlaying:
			update = update.Set("started_at", at)
		case models.GameStatusFinished:
			update = update.Set("finished_at", at)
		}
		query, args, err := update.ToSql()
		if err != nil {
			return err
		}

		res, err := s.conn(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update game status: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return store.ErrNotFound
		}

		game, err = s.GetGame(ctx, id)
		if err != nil {
			return err
		}

		ev := models.NewChangeEvent(id, models.ChangeGameStatusChanged, at)
		g := *game
		ev.Game = &g
		s.emit(ctx, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

// ListGamesByActor returns games administered or joined by actorID, newest first.
func (s *Store) ListGamesByActor(ctx context.Context, actorID uuid.UUID, limit int) ([]models.Game, error) {
	cols := make([]string, len(gameColumns))
	for i, c := range gameColumns {
		cols[i] = "g." + c
	}

	sel := builder.Select(cols...).
		From("bingo_games g").
		Where(sq.Or{
			sq.Eq{"g.admin_id": actorID},
			sq.Expr("EXISTS (SELECT 1 FROM game_players p WHERE p.game_id = g.id AND p.user_id = ?)", actorID),
		}).
		OrderBy("g.created_at DESC", "g.rowid DESC")
	if limit > 0 {
		sel = sel.Limit(uint64(limit))
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}
