package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus defines the lifecycle state of a game.
type GameStatus string

const (
	GameStatusPending  GameStatus = "pending"
	GameStatusPlaying  GameStatus = "playing"
	GameStatusFinished GameStatus = "finished"
)

// Variant is the highest number of a game; numbers are drawn from 1..Variant.
type Variant int

const (
	Variant75 Variant = 75
	Variant90 Variant = 90
)

// Valid reports whether v is a supported variant.
func (v Variant) Valid() bool {
	return v == Variant75 || v == Variant90
}

// WinCondition defines which card pattern wins.
type WinCondition string

const (
	WinConditionLine   WinCondition = "line"
	WinConditionColumn WinCondition = "column"
	WinConditionFull   WinCondition = "full"
)

// Valid reports whether c is a known win condition.
func (c WinCondition) Valid() bool {
	switch c {
	case WinConditionLine, WinConditionColumn, WinConditionFull:
		return true
	}
	return false
}

const (
	DefaultVariant      = Variant75
	DefaultWinCondition = WinConditionLine
	DefaultMaxWinners   = 1
)

// Game represents a bingo session.
type Game struct {
	ID           uuid.UUID    `json:"id"`
	Code         string       `json:"code"`
	Variant      Variant      `json:"variant"`
	Status       GameStatus   `json:"status"`
	WinCondition WinCondition `json:"win_condition"`
	MaxWinners   int          `json:"max_winners"`
	AdminID      uuid.UUID    `json:"admin_id"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
}

// DrawnNumber is one entry of a game's draw sequence.
type DrawnNumber struct {
	Number  int       `json:"number"`
	Seq     int       `json:"seq"`
	DrawnAt time.Time `json:"drawn_at"`
}

// Numbers returns the plain values of a draw sequence, in order.
func Numbers(drawn []DrawnNumber) []int {
	out := make([]int, len(drawn))
	for i, d := range drawn {
		out[i] = d.Number
	}
	return out
}
