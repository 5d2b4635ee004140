package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store"
)

var gameColumns = []string{
	"id", "code", "variant", "status", "win_condition", "max_winners",
	"admin_id", "created_at", "started_at", "finished_at",
}

func scanGame(row pgx.Row) (*models.Game, error) {
	var (
		g            models.Game
		variant      int
		status       string
		winCondition string
	)
	err := row.Scan(
		&g.ID, &g.Code, &variant, &status, &winCondition, &g.MaxWinners,
		&g.AdminID, &g.CreatedAt, &g.StartedAt, &g.FinishedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	g.Variant = models.Variant(variant)
	g.Status = models.GameStatus(status)
	g.WinCondition = models.WinCondition(winCondition)
	return &g, nil
}

// CreateGame inserts a pending game.
func (s *Store) CreateGame(ctx context.Context, params store.CreateGameParams) (*models.Game, error) {
	var game *models.Game
	err := s.Do(ctx, func(ctx context.Context) error {
		query, args, err := psql.Insert("bingo_games").
			Columns("id", "code", "variant", "status", "win_condition", "max_winners", "admin_id").
			Values(uuid.New(), params.Code, int(params.Variant), string(models.GameStatusPending),
				string(params.WinCondition), params.MaxWinners, params.AdminID).
			Suffix("RETURNING " + strings.Join(gameColumns, ", ")).
			ToSql()
		if err != nil {
			return err
		}

		game, err = scanGame(s.conn(ctx).QueryRow(ctx, query, args...))
		if isUniqueViolation(err, "bingo_games_code_key") {
			return store.ErrDuplicateCode
		}
		if err != nil {
			return fmt.Errorf("failed to insert game: %w", err)
		}

		ev := models.NewChangeEvent(game.ID, models.ChangeGameCreated, game.CreatedAt)
		ev.Game = game
		return s.emit(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

// GetGame retrieves a game by ID
func (s *Store) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	query, args, err := psql.Select(gameColumns...).From("bingo_games").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanGame(s.conn(ctx).QueryRow(ctx, query, args...))
}

// GetGameByCode retrieves a game by its join code
func (s *Store) GetGameByCode(ctx context.Context, code string) (*models.Game, error) {
	query, args, err := psql.Select(gameColumns...).From("bingo_games").Where(sq.Eq{"code": code}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanGame(s.conn(ctx).QueryRow(ctx, query, args...))
}

// UpdateGameStatus sets the status and the matching timestamp.
func (s *Store) UpdateGameStatus(ctx context.Context, id uuid.UUID, status models.GameStatus) (*models.Game, error) {
	var game *models.Game
	err := s.Do(ctx, func(ctx context.Context) error {
		update := psql.Update("bingo_games").Set("status", string(status)).Where(sq.Eq{"id": id})
		switch status {
		case models.GameStatusPlaying:
			update = update.Set("started_at", sq.Expr("now()"))
		case models.GameStatusFinished:
			update = update.Set("finished_at", sq.Expr("now()"))
		}
		query, args, err := update.Suffix("RETURNING " + strings.Join(gameColumns, ", ")).ToSql()
		if err != nil {
			return err
		}

		game, err = scanGame(s.conn(ctx).QueryRow(ctx, query, args...))
		if err != nil {
			return err
		}

		at := time.Now().UTC()
		if status == models.GameStatusPlaying && game.StartedAt != nil {
			at = *game.StartedAt
		} else if status == models.GameStatusFinished && game.FinishedAt != nil {
			at = *game.FinishedAt
		}
		ev := models.NewChangeEvent(id, models.ChangeGameStatusChanged, at)
		ev.Game = game
		return s.emit(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

// ListGamesByActor returns games administered or joined by actorID, newest first.
func (s *Store) ListGamesByActor(ctx context.Context, actorID uuid.UUID, limit int) ([]models.Game, error) {
	sel := psql.Select(prefixColumns("g", gameColumns)...).
		From("bingo_games g").
		Where(sq.Or{
			sq.Eq{"g.admin_id": actorID},
			sq.Expr("EXISTS (SELECT 1 FROM game_players p WHERE p.game_id = g.id AND p.user_id = ?)", actorID),
		}).
		OrderBy("g.created_at DESC")
	if limit > 0 {
		sel = sel.Limit(uint64(limit))
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.conn(ctx).Query(ctx, query, args...)
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

func prefixColumns(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}
