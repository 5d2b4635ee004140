package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/sqlutil"
	"github.com/mcdev12/bingo/go/internal/store"
)

var playerColumns = []string{
	"id", "game_id", "user_id", "name", "card", "is_winner", "winner_rank", "joined_at",
}

func scanPlayer(row scanner) (*models.Player, error) {
	var (
		p      models.Player
		userID uuid.NullUUID
		card   string
		rank   sql.NullInt32
	)
	if err := row.Scan(&p.ID, &p.GameID, &userID, &p.Name, &card, &p.IsWinner, &rank, &p.JoinedAt); err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal([]byte(card), &p.Card); err != nil {
		return nil, fmt.Errorf("failed to decode card of player %s: %w", p.ID, err)
	}
	p.UserID = sqlutil.OptionalUUID(userID)
	p.WinnerRank = int(rank.Int32)
	p.JoinedAt = p.JoinedAt.UTC()
	return &p, nil
}

func (s *Store) getPlayer(ctx context.Context, gameID, playerID uuid.UUID) (*models.Player, error) {
	query, args, err := builder.Select(playerColumns...).
		From("game_players").
		Where(sq.Eq{"id": playerID, "game_id": gameID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	return scanPlayer(s.conn(ctx).QueryRowContext(ctx, query, args...))
}

// InsertPlayer appends a player to a game.
func (s *Store) InsertPlayer(ctx context.Context, params store.InsertPlayerParams) (*models.Player, error) {
	card, err := json.Marshal(params.Card)
	if err != nil {
		return nil, fmt.Errorf("failed to encode card: %w", err)
	}

	player := &models.Player{
		ID:       uuid.New(),
		GameID:   params.GameID,
		UserID:   params.UserID,
		Name:     params.Name,
		Card:     params.Card,
		JoinedAt: s.now(),
	}

	err = s.Do(ctx, func(ctx context.Context) error {
		if _, err := s.GetGame(ctx, params.GameID); err != nil {
			return err
		}

		query, args, err := builder.Insert("game_players").
			Columns("id", "game_id", "user_id", "name", "card", "joined_at").
			Values(player.ID, player.GameID, sqlutil.NullUUID(player.UserID), player.Name, string(card), player.JoinedAt).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert player: %w", err)
		}

		ev := models.NewChangeEvent(params.GameID, models.ChangePlayerJoined, player.JoinedAt)
		p := *player
		ev.Player = &p
		s.emit(ctx, ev)
		return nil
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

	query, args, err := builder.Select(playerColumns...).
		From("game_players").
		Where(sq.Eq{"game_id": gameID}).
		OrderBy("join_seq").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
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
		query, args, err := builder.Update("game_players").
			Set("is_winner", true).
			Set("winner_rank", rank).
			Set("progress", string(raw)).
			Where(sq.Eq{"id": playerID, "game_id": gameID}).
			ToSql()
		if err != nil {
			return err
		}

		res, err := s.conn(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to record winner: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return store.ErrNotFound
		}

		player, err = s.getPlayer(ctx, gameID, playerID)
		if err != nil {
			return err
		}

		ev := models.NewChangeEvent(gameID, models.ChangeWinnerDeclared, s.now())
		p := *player
		ev.Player = &p
		s.emit(ctx, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

// WinnerProgress returns the progress recorded when playerID won, if any.
func (s *Store) WinnerProgress(ctx context.Context, playerID uuid.UUID) (*models.Progress, error) {
	var raw sql.Null[string]
	err := s.conn(ctx).QueryRowContext(ctx, "SELECT progress FROM game_players WHERE id = ?", playerID).Scan(&raw)
	if err != nil {
		return nil, notFound(err)
	}
	text := sqlutil.Optional(raw)
	if text == nil {
		return nil, nil
	}

	var p models.Progress
	if err := json.Unmarshal([]byte(*text), &p); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	return &p, nil
}
