package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store"
)

var playerColumns = []string{
	"id", "game_id", "user_id", "name", "card", "is_winner", "winner_rank", "joined_at",
}

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var (
		p    models.Player
		card []byte
		rank *int
	)
	if err := row.Scan(&p.ID, &p.GameID, &p.UserID, &p.Name, &card, &p.IsWinner, &rank, &p.JoinedAt); err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(card, &p.Card); err != nil {
		return nil, fmt.Errorf("failed to decode card of player %s: %w", p.ID, err)
	}
	if rank != nil {
		p.WinnerRank = *rank
	}
	return &p, nil
}

// InsertPlayer appends a player to a game.
func (s *Store) InsertPlayer(ctx context.Context, params store.InsertPlayerParams) (*models.Player, error) {
	card, err := json.Marshal(params.Card)
	if err != nil {
		return nil, fmt.Errorf("failed to encode card: %w", err)
	}

	var player *models.Player
	err = s.Do(ctx, func(ctx context.Context) error {
		if err := s.lockGame(ctx, params.GameID); err != nil {
			return err
		}

		query, args, err := psql.Insert("game_players").
			Columns("id", "game_id", "user_id", "name", "card").
			Values(uuid.New(), params.GameID, params.UserID, params.Name, card).
			Suffix("RETURNING " + strings.Join(playerColumns, ", ")).
			ToSql()
		if err != nil {
			return err
		}

		player, err = scanPlayer(s.conn(ctx).QueryRow(ctx, query, args...))
		if err != nil {
			return fmt.Errorf("failed to insert player: %w", err)
		}

		ev := models.NewChangeEvent(params.GameID, models.ChangePlayerJoined, player.JoinedAt)
		ev.Player = player
		return s.emit(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

// ListPlayers returns the players of a game in join order.
func (s *Store) ListPlayers(ctx context.Context, gameID uuid.UUID) ([]models.Player, error) {
	if _, err := s.GetGame(ctx, gameID); err != nil {
		return nil, err
	}

	query, args, err := psql.Select(playerColumns...).
		From("game_players").
		Where(sq.Eq{"game_id": gameID}).
		OrderBy("join_seq").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

// RecordWinner marks a player as winner with the given rank and stores the
// card progress at the moment of the win.
func (s *Store) RecordWinner(ctx context.Context, gameID, playerID uuid.UUID, rank int, progress models.Progress) (*models.Player, error) {
	raw, err := json.Marshal(progress)
	if err != nil {
		return nil, fmt.Errorf("failed to encode progress: %w", err)
	}

	var player *models.Player
	err = s.Do(ctx, func(ctx context.Context) error {
		query, args, err := psql.Update("game_players").
			Set("is_winner", true).
			Set("winner_rank", rank).
			Set("progress", pqtype.NullRawMessage{RawMessage: raw, Valid: true}).
			Where(sq.Eq{"id": playerID, "game_id": gameID}).
			Suffix("RETURNING " + strings.Join(playerColumns, ", ")).
			ToSql()
		if err != nil {
			return err
		}

		player, err = scanPlayer(s.conn(ctx).QueryRow(ctx, query, args...))
		if err != nil {
			return err
		}

		ev := models.NewChangeEvent(gameID, models.ChangeWinnerDeclared, time.Now().UTC())
		ev.Player = player
		return s.emit(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

// WinnerProgress returns the progress recorded when playerID won, if any.
func (s *Store) WinnerProgress(ctx context.Context, playerID uuid.UUID) (*models.Progress, error) {
	var raw pqtype.NullRawMessage
	err := s.conn(ctx).QueryRow(ctx, "SELECT progress FROM game_players WHERE id = $1", playerID).Scan(&raw)
	if err != nil {
		return nil, notFound(err)
	}
	if !raw.Valid {
		return nil, nil
	}

	var p models.Progress
	if err := json.Unmarshal(raw.RawMessage, &p); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	return &p, nil
}

// lockGame takes a row lock on the game for the rest of the transaction.
func (s *Store) lockGame(ctx context.Context, gameID uuid.UUID) error {
	var id uuid.UUID
	err := s.conn(ctx).QueryRow(ctx, "SELECT id FROM bingo_games WHERE id = $1 FOR UPDATE", gameID).Scan(&id)
	return notFound(err)
}
