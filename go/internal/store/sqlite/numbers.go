package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/mcdev12/bingo/go/internal/models"
)

// AppendDrawnNumber appends number unless it was already drawn for the game.
// Writers are serialized by the immediate transaction lock, so the next
// sequence number is read and written without interleaving.
func (s *Store) AppendDrawnNumber(ctx context.Context, gameID uuid.UUID, number int) (*models.DrawnNumber, bool, error) {
	var (
		drawn    models.DrawnNumber
		inserted bool
	)
	err := s.Do(ctx, func(ctx context.Context) error {
		if _, err := s.GetGame(ctx, gameID); err != nil {
			return err
		}

		err := s.conn(ctx).QueryRowContext(ctx,
			"SELECT number, seq, drawn_at FROM numbers_drawn WHERE game_id = ? AND number = ?",
			gameID, number,
		).Scan(&drawn.Number, &drawn.Seq, &drawn.DrawnAt)
		if err == nil {
			drawn.DrawnAt = drawn.DrawnAt.UTC()
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to load drawn number: %w", err)
		}

		var seq int
		err = s.conn(ctx).QueryRowContext(ctx,
			"SELECT COALESCE(MAX(seq), 0) + 1 FROM numbers_drawn WHERE game_id = ?", gameID,
		).Scan(&seq)
		if err != nil {
			return fmt.Errorf("failed to read draw sequence: %w", err)
		}

		drawn = models.DrawnNumber{Number: number, Seq: seq, DrawnAt: s.now()}
		query, args, err := builder.Insert("numbers_drawn").
			Columns("game_id", "number", "seq", "drawn_at").
			Values(gameID, drawn.Number, drawn.Seq, drawn.DrawnAt).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert drawn number: %w", err)
		}
		inserted = true

		ev := models.NewChangeEvent(gameID, models.ChangeNumberDrawn, drawn.DrawnAt)
		d := drawn
		ev.Number = &d
		s.emit(ctx, ev)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &drawn, inserted, nil
}

// ListDrawnNumbers returns the draw sequence of a game in insertion order.
func (s *Store) ListDrawnNumbers(ctx context.Context, gameID uuid.UUID) ([]models.DrawnNumber, error) {
	if _, err := s.GetGame(ctx, gameID); err != nil {
		return nil, err
	}

	query, args, err := builder.Select("number", "seq", "drawn_at").
		From("numbers_drawn").
		Where(sq.Eq{"game_id": gameID}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list drawn numbers: %w", err)
	}
	defer rows.Close()

	var drawn []models.DrawnNumber
	for rows.Next() {
		var d models.DrawnNumber
		if err := rows.Scan(&d.Number, &d.Seq, &d.DrawnAt); err != nil {
			return nil, err
		}
		d.DrawnAt = d.DrawnAt.UTC()
		drawn = append(drawn, d)
	}
	return drawn, rows.Err()
}
