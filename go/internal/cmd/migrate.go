package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingo/go/internal/dbconfig"
	"github.com/mcdev12/bingo/go/internal/store/postgres"
	"github.com/mcdev12/bingo/go/internal/store/sqlite"
)

type MigrateCmd struct {
	Driver string `enum:"postgres,sqlite" default:"postgres" help:"Database to migrate (postgres, sqlite)"`
}

func (c *MigrateCmd) Run(globals *Globals) error {
	cfg, err := globals.load()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if c.Driver == driverSQLite {
		// Open applies the embedded schema.
		s, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		log.Info().Str("path", cfg.Store.SQLitePath).Msg("sqlite schema applied")
		return s.Close()
	}

	pool, err := setupPool(ctx, dbconfig.NewConfigFromEnv())
	if err != nil {
		return err
	}
	defer pool.Close()

	s, err := postgres.New(pool)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Migrate(ctx)
}
