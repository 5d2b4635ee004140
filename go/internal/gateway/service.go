package gateway

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// EventSource feeds committed changes to the connection manager.
type EventSource interface {
	Start(ctx context.Context) error
}

// Service pushes game changes to WebSocket observers and serves game snapshots.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// NewService creates a gateway service. Events reach clients once Start runs
// with a source bound to Connections().
func NewService(config ConnectionConfig, provider StateProvider) *Service {
	cm := NewConnectionManager(config)
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		stateHandler:      NewStateHandler(provider),
	}
}

// Connections returns the connection manager sources broadcast to.
func (s *Service) Connections() *ConnectionManager {
	return s.connectionManager
}

// Start runs the connection manager and source until ctx is done or the
// source fails.
func (s *Service) Start(ctx context.Context, source EventSource) error {
	log.Info().Msg("starting game gateway")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.connectionManager.Start(ctx)
		return nil
	})
	g.Go(func() error {
		return source.Start(ctx)
	})

	err := g.Wait()
	log.Info().Msg("game gateway stopped")
	return err
}

// Routes registers the WebSocket and state routes on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/ws/game", s.wsHandler.HandleGameConnection)
	r.Get("/ws/stats", s.wsHandler.HandleConnectionStats)
	r.Get("/api/games/{id}/state", s.stateHandler.HandleGetGameState)
}
