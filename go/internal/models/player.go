package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	CardSize = 5
	// FreeCell is the value stored in the centre cell of every card.
	FreeCell = 0
	// FreeRow and FreeCol locate the free cell.
	FreeRow = 2
	FreeCol = 2
)

// Card is a bingo grid indexed [row][col].
type Card [CardSize][CardSize]int

// Column returns the values of column c, top to bottom.
func (c Card) Column(col int) [CardSize]int {
	var out [CardSize]int
	for row := 0; row < CardSize; row++ {
		out[row] = c[row][col]
	}
	return out
}

// Player is a participant of one game.
type Player struct {
	ID         uuid.UUID  `json:"id"`
	GameID     uuid.UUID  `json:"game_id"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	Name       string     `json:"name"`
	Card       Card       `json:"card"`
	IsWinner   bool       `json:"is_winner"`
	WinnerRank int        `json:"winner_rank,omitempty"`
	JoinedAt   time.Time  `json:"joined_at"`
}

// Progress summarises how close a card is to winning.
type Progress struct {
	Marked     int `json:"marked"`
	BestRow    int `json:"best_row"`
	BestColumn int `json:"best_column"`
}
