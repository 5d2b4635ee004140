package game

import (
	"slices"

	"github.com/mcdev12/bingo/go/internal/bingo"
	"github.com/mcdev12/bingo/go/internal/models"
)

// PlayerState is a player together with its card progress.
type PlayerState struct {
	models.Player
	Progress models.Progress `json:"progress"`
}

// GameState is the full view of a game at one point in time.
type GameState struct {
	Game          models.Game          `json:"game"`
	Players       []PlayerState        `json:"players"`
	DrawnNumbers  []models.DrawnNumber `json:"drawn_numbers"`
	CurrentNumber *int                 `json:"current_number,omitempty"`
	Winners       []models.Player      `json:"winners"`
	Remaining     int                  `json:"remaining"`
}

func newGameState(game models.Game, players []models.Player, drawn []models.DrawnNumber) *GameState {
	set := bingo.NewDrawnSet(models.Numbers(drawn))

	state := &GameState{
		Game:         game,
		Players:      make([]PlayerState, 0, len(players)),
		DrawnNumbers: slices.Clone(drawn),
		Winners:      []models.Player{},
		Remaining:    max(int(game.Variant)-len(drawn), 0),
	}
	if state.DrawnNumbers == nil {
		state.DrawnNumbers = []models.DrawnNumber{}
	}
	if len(drawn) > 0 {
		current := drawn[len(drawn)-1].Number
		state.CurrentNumber = &current
	}

	for _, p := range players {
		state.Players = append(state.Players, PlayerState{Player: p, Progress: set.Progress(p.Card)})
		if p.IsWinner {
			state.Winners = append(state.Winners, p)
		}
	}
	slices.SortStableFunc(state.Winners, func(a, b models.Player) int { return a.WinnerRank - b.WinnerRank })

	return state
}
