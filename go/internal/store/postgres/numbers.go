package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mcdev12/bingo/go/internal/models"
)

const appendDrawnNumber = `
INSERT INTO numbers_drawn (game_id, number, seq)
SELECT $1, $2, COALESCE(MAX(seq), 0) + 1 FROM numbers_drawn WHERE game_id = $1
ON CONFLICT (game_id, number) DO NOTHING
RETURNING number, seq, drawn_at`

// AppendDrawnNumber appends number unless it was already drawn for the game.
// The game row is locked so concurrent writers get consecutive sequence numbers.
func (s *Store) AppendDrawnNumber(ctx context.Context, gameID uuid.UUID, number int) (*models.DrawnNumber, bool, error) {
	var (
		drawn    models.DrawnNumber
		inserted bool
	)
	err := s.Do(ctx, func(ctx context.Context) error {
		if err := s.lockGame(ctx, gameID); err != nil {
			return err
		}

		err := s.conn(ctx).QueryRow(ctx, appendDrawnNumber, gameID, number).
			Scan(&drawn.Number, &drawn.Seq, &drawn.DrawnAt)
		if errors.Is(err, pgx.ErrNoRows) {
			err = s.conn(ctx).QueryRow(ctx,
				"SELECT number, seq, drawn_at FROM numbers_drawn WHERE game_id = $1 AND number = $2",
				gameID, number,
			).Scan(&drawn.Number, &drawn.Seq, &drawn.DrawnAt)
			if err != nil {
				return fmt.Errorf("failed to load drawn number: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to insert drawn number: %w", err)
		}
		inserted = true

		ev := models.NewChangeEvent(gameID, models.ChangeNumberDrawn, drawn.DrawnAt)
		d := drawn
		ev.Number = &d
		return s.emit(ctx, ev)
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

	query, args, err := psql.Select("number", "seq", "drawn_at").
		From("numbers_drawn").
		Where(sq.Eq{"game_id": gameID}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.conn(ctx).Query(ctx, query, args...)
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
		drawn = append(drawn, d)
	}
	return drawn, rows.Err()
}
