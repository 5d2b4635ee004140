package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingo/go/internal/bingo"
)

// ActorHeader carries the id of the user performing a request.
const ActorHeader = "X-Actor-ID"

const defaultAutoDrawInterval = 3 * time.Second

type joinGameRequest struct {
	Code   string     `json:"code"`
	Name   string     `json:"name"`
	UserID *uuid.UUID `json:"user_id,omitempty"`
}

type autoDrawRequest struct {
	IntervalMS int `json:"interval_ms"`
}

type autoDrawResponse struct {
	GameID   uuid.UUID `json:"game_id"`
	Active   bool      `json:"active"`
	Interval string    `json:"interval,omitempty"`
}

// Service exposes the game App over HTTP.
type Service struct {
	app  *App
	auto *AutoDrawer
}

// NewService creates a new game Service. auto may be nil, in which case the
// autodraw routes answer 404.
func NewService(app *App, auto *AutoDrawer) *Service {
	return &Service{app: app, auto: auto}
}

// Routes registers the game endpoints on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/api/games", s.CreateGame)
	r.Post("/api/games/join", s.JoinGame)
	r.Get("/api/games/{id}", s.GetGame)
	r.Post("/api/games/{id}/start", s.StartGame)
	r.Post("/api/games/{id}/draw", s.DrawNumber)
	r.Post("/api/games/{id}/finish", s.FinishGame)
	r.Post("/api/games/{id}/autodraw", s.StartAutoDraw)
	r.Delete("/api/games/{id}/autodraw", s.StopAutoDraw)
	r.Get("/api/users/{id}/games", s.History)
}

// CreateGame handles POST /api/games
func (s *Service) CreateGame(w http.ResponseWriter, r *http.Request) {
	req, err := decode[CreateGameRequest](r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	actor, err := actorID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if actor != uuid.Nil {
		req.AdminID = actor
	}

	game, err := s.app.CreateGame(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

// JoinGame handles POST /api/games/join
func (s *Service) JoinGame(w http.ResponseWriter, r *http.Request) {
	req, err := decode[joinGameRequest](r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	player, err := s.app.Join(r.Context(), req.Code, JoinRequest{Name: req.Name, UserID: req.UserID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, player)
}

// GetGame handles GET /api/games/{id}
func (s *Service) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}

	state, err := s.app.State(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// StartGame handles POST /api/games/{id}/start
func (s *Service) StartGame(w http.ResponseWriter, r *http.Request) {
	gameID, actor, ok := adminRequest(w, r)
	if !ok {
		return
	}
	game, err := s.app.StartGame(r.Context(), gameID, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// DrawNumber handles POST /api/games/{id}/draw
func (s *Service) DrawNumber(w http.ResponseWriter, r *http.Request) {
	gameID, actor, ok := adminRequest(w, r)
	if !ok {
		return
	}
	res, err := s.app.DrawNumber(r.Context(), gameID, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// FinishGame handles POST /api/games/{id}/finish
func (s *Service) FinishGame(w http.ResponseWriter, r *http.Request) {
	gameID, actor, ok := adminRequest(w, r)
	if !ok {
		return
	}
	game, err := s.app.FinishGame(r.Context(), gameID, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.auto != nil {
		s.auto.Stop(gameID)
	}
	writeJSON(w, http.StatusOK, game)
}

// StartAutoDraw handles POST /api/games/{id}/autodraw
func (s *Service) StartAutoDraw(w http.ResponseWriter, r *http.Request) {
	if s.auto == nil {
		http.NotFound(w, r)
		return
	}
	gameID, actor, ok := adminRequest(w, r)
	if !ok {
		return
	}

	var req autoDrawRequest
	if r.ContentLength != 0 {
		if req, ok = decodeOrFail[autoDrawRequest](w, r); !ok {
			return
		}
	}
	interval := defaultAutoDrawInterval
	if req.IntervalMS > 0 {
		interval = time.Duration(req.IntervalMS) * time.Millisecond
	}

	if err := s.auto.Start(r.Context(), gameID, actor, interval); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, autoDrawResponse{GameID: gameID, Active: true, Interval: interval.String()})
}

// StopAutoDraw handles DELETE /api/games/{id}/autodraw
func (s *Service) StopAutoDraw(w http.ResponseWriter, r *http.Request) {
	if s.auto == nil {
		http.NotFound(w, r)
		return
	}
	gameID, actor, ok := adminRequest(w, r)
	if !ok {
		return
	}

	game, err := s.app.GetGame(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	if game.AdminID != actor {
		writeError(w, ErrUnauthorized)
		return
	}

	s.auto.Stop(gameID)
	writeJSON(w, http.StatusOK, autoDrawResponse{GameID: gameID, Active: false})
}

// History handles GET /api/users/{id}/games
func (s *Service) History(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	games, err := s.app.History(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func adminRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	gameID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	actor, err := actorID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	return gameID, actor, true
}

func actorID(r *http.Request) (uuid.UUID, error) {
	v := r.Header.Get(ActorHeader)
	if v == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s header", ActorHeader)
	}
	return id, nil
}

func decode[T any](body io.Reader) (T, error) {
	var v T
	if err := json.NewDecoder(body).Decode(&v); err != nil {
		return v, fmt.Errorf("invalid request body: %w", err)
	}
	return v, nil
}

func decodeOrFail[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	v, err := decode[T](r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return v, false
	}
	return v, true
}

// StatusCode maps an App error to an HTTP status.
func StatusCode(err error) int {
	var invalidVariant *bingo.InvalidVariantError
	var syncErr *SyncLayerError
	switch {
	case errors.Is(err, ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrGameFinished),
		errors.Is(err, ErrGameNotPlaying),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInsufficientPlayers),
		errors.Is(err, ErrPoolExhausted):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidRequest), errors.As(err, &invalidVariant):
		return http.StatusUnprocessableEntity
	case errors.As(err, &syncErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
