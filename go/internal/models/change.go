package models

import (
	"time"

	"github.com/google/uuid"
)

// ChangeTable names the record set a change belongs to.
type ChangeTable string

const (
	TableGames   ChangeTable = "bingo_games"
	TablePlayers ChangeTable = "game_players"
	TableNumbers ChangeTable = "numbers_drawn"
)

// ChangeType identifies what happened.
type ChangeType string

const (
	ChangeGameCreated       ChangeType = "GameCreated"
	ChangeGameStatusChanged ChangeType = "GameStatusChanged"
	ChangePlayerJoined      ChangeType = "PlayerJoined"
	ChangeWinnerDeclared    ChangeType = "WinnerDeclared"
	ChangeNumberDrawn       ChangeType = "NumberDrawn"
)

// Table returns the table a change type is recorded against.
func (t ChangeType) Table() ChangeTable {
	switch t {
	case ChangePlayerJoined, ChangeWinnerDeclared:
		return TablePlayers
	case ChangeNumberDrawn:
		return TableNumbers
	default:
		return TableGames
	}
}

// ChangeEvent is a committed mutation of a game, as delivered to observers.
type ChangeEvent struct {
	ID         uuid.UUID    `json:"id"`
	GameID     uuid.UUID    `json:"game_id"`
	Table      ChangeTable  `json:"table"`
	Type       ChangeType   `json:"type"`
	Game       *Game        `json:"game,omitempty"`
	Player     *Player      `json:"player,omitempty"`
	Number     *DrawnNumber `json:"number,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// NewChangeEvent builds an event of the given type with a fresh id.
func NewChangeEvent(gameID uuid.UUID, typ ChangeType, at time.Time) ChangeEvent {
	return ChangeEvent{
		ID:         uuid.New(),
		GameID:     gameID,
		Table:      typ.Table(),
		Type:       typ,
		OccurredAt: at,
	}
}
