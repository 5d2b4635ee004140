package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingo/go/internal/game"
)

// StateProvider returns the full state of a game.
type StateProvider interface {
	State(ctx context.Context, gameID uuid.UUID) (*game.GameState, error)
}

// StateHandler serves game snapshots so clients can resync after connecting.
type StateHandler struct {
	stateProvider StateProvider
}

func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{stateProvider: provider}
}

// HandleGetGameState handles GET /api/games/{id}/state
func (h *StateHandler) HandleGetGameState(w http.ResponseWriter, r *http.Request) {
	gameID, ok := ParseGameID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid game ID format", http.StatusBadRequest)
		return
	}

	state, err := h.stateProvider.State(r.Context(), gameID)
	if err != nil {
		status := game.StatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to get game state")
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode game state response")
	}
}
