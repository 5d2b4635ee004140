package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type ServeCmd struct {
	Port  int    `help:"HTTP port, overrides the config"`
	Store string `help:"Store driver (memory, sqlite, postgres), overrides the config"`
}

func (c *ServeCmd) Run(globals *Globals) error {
	cfg, err := globals.load()
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Store != "" {
		cfg.Store.Driver = c.Store
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	services := setupServices(st, cfg)
	if services.AutoDraw != nil {
		defer services.AutoDraw.StopAll()
	}

	source, closeSource, err := setupEventSource(ctx, cfg, st, services.Gateway)
	if err != nil {
		return err
	}
	defer closeSource()

	srv := setupServer(cfg, services)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store.Driver).Bool("nats", cfg.NATS.Enabled).Msg("bingo server listening")
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
	g.Go(func() error {
		return services.Gateway.Start(gctx, source)
	})
	if st.listen != nil {
		g.Go(func() error {
			return st.listen(gctx)
		})
	}

	err = g.Wait()
	log.Info().Msg("bingo server stopped")
	return err
}
