package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/bingo/go/internal/models"
)

// GameEvent is the message pushed to websocket clients.
type GameEvent struct {
	ID        string            `json:"id"`        // Event UUID
	GameID    string            `json:"game_id"`   // Game UUID
	Type      models.ChangeType `json:"type"`      // Event type
	Timestamp time.Time         `json:"timestamp"` // When the change was committed
	Data      json.RawMessage   `json:"data"`      // The encoded models.ChangeEvent
}

// NewGameEvent wraps a committed change for delivery to clients.
func NewGameEvent(change models.ChangeEvent) (*GameEvent, error) {
	data, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("marshal change event: %w", err)
	}
	return &GameEvent{
		ID:        change.ID.String(),
		GameID:    change.GameID.String(),
		Type:      change.Type,
		Timestamp: change.OccurredAt,
		Data:      data,
	}, nil
}

// ParseChange decodes the change carried by event.
func ParseChange(event *GameEvent) (models.ChangeEvent, error) {
	var change models.ChangeEvent
	if err := json.Unmarshal(event.Data, &change); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("unmarshal change event: %w", err)
	}
	return change, nil
}

func knownChangeType(t models.ChangeType) bool {
	switch t {
	case models.ChangeGameCreated, models.ChangeGameStatusChanged, models.ChangePlayerJoined,
		models.ChangeWinnerDeclared, models.ChangeNumberDrawn:
		return true
	}
	return false
}
