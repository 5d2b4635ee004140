package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/bingo/go/internal/dbconfig"
	"github.com/mcdev12/bingo/go/internal/outbox"
	"github.com/mcdev12/bingo/go/internal/store/postgres"
)

// RelayCmd moves committed outbox rows to JetStream. It runs next to any
// number of `serve` processes sharing the same Postgres database.
type RelayCmd struct {
	HealthPort int `help:"Port of the relay health endpoint, overrides the config"`
}

func (c *RelayCmd) Run(globals *Globals) error {
	cfg, err := globals.load()
	if err != nil {
		return err
	}
	if c.HealthPort != 0 {
		cfg.Outbox.HealthPort = c.HealthPort
	}

	ctx, stop := signalContext()
	defer stop()

	dbCfg := dbconfig.NewConfigFromEnv()
	db, err := setupSQLDB(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	publisher, err := outbox.NewJetStreamPublisher(ctx, cfg.jetStream())
	if err != nil {
		return err
	}
	defer publisher.Close()

	relayCfg := outbox.DefaultRelayConfig()
	relayCfg.DatabaseURL = dbCfg.DSN()
	relayCfg.NotifyChannel = postgres.NotifyChannel
	if cfg.Outbox.FallbackInterval > 0 {
		relayCfg.FallbackInterval = cfg.Outbox.FallbackInterval
	}
	if cfg.Outbox.BatchSize > 0 {
		relayCfg.BatchSize = cfg.Outbox.BatchSize
	}
	if cfg.Outbox.MaxRetries > 0 {
		relayCfg.MaxRetries = cfg.Outbox.MaxRetries
	}

	repo := outbox.NewRepository(db)
	relay := outbox.NewRelay(repo, publisher, relayCfg)
	health := outbox.NewHealthChecker(relay, db, repo, publisher.Conn(), cfg.Outbox.UnhealthyAfter)

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/health", health)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Outbox.HealthPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Start(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("relay health endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
