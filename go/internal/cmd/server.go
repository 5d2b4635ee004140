package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/bingo/go/internal/game"
)

type healthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	ActiveGames int    `json:"active_games"`
	Connections int    `json:"connections"`
}

func setupServer(cfg *Config, services *Services) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           setupHandler(cfg, services),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func setupHandler(cfg *Config, services *Services) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Register services
	services.Games.Routes(r)
	services.Users.Routes(r)
	services.Gateway.Routes(r)

	// Add health check endpoint
	setupHealthCheck(r, cfg, services)

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedHeaders: []string{"Content-Type", game.ActorHeader},
	})

	// HTTP/2 without TLS for clients that speak it; WebSocket upgrades pass through.
	return h2c.NewHandler(c.Handler(r), &http2.Server{})
}

func setupHealthCheck(r chi.Router, cfg *Config, services *Services) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:      "ok",
			Store:       cfg.Store.Driver,
			ActiveGames: services.GameApp.ActiveMachines(),
			Connections: services.Gateway.Connections().Stats().TotalConnections,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

func allowsAnyOrigin(origins []string) bool {
	return len(origins) == 0 || slices.Contains(origins, "*")
}

// originChecker limits WebSocket upgrades to the configured CORS origins.
func originChecker(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
