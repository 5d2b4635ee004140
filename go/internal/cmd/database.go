package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingo/go/internal/dbconfig"
	"github.com/mcdev12/bingo/go/internal/game"
	"github.com/mcdev12/bingo/go/internal/store/memory"
	"github.com/mcdev12/bingo/go/internal/store/postgres"
	"github.com/mcdev12/bingo/go/internal/store/sqlite"
	"github.com/mcdev12/bingo/go/internal/users"
)

// bingoStore is what every store driver provides.
type bingoStore interface {
	game.SyncLayer
	game.TxManager
	users.UsersRepository
}

type storeHandle struct {
	bingoStore
	// listen feeds the store's change feed from another process' commits.
	// Nil for stores whose feed is filled in-process.
	listen func(ctx context.Context) error
	close  func()
}

func openStore(ctx context.Context, cfg *Config) (*storeHandle, error) {
	switch cfg.Store.Driver {
	case driverMemory:
		s := memory.New()
		log.Info().Msg("using in-memory store")
		return &storeHandle{bingoStore: s, close: s.Close}, nil

	case driverSQLite:
		s, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.Store.SQLitePath).Msg("using sqlite store")
		return &storeHandle{bingoStore: s, close: func() {
			if err := s.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close sqlite store")
			}
		}}, nil

	case driverPostgres:
		dbCfg := dbconfig.NewConfigFromEnv()
		pool, err := setupPool(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		s, err := postgres.New(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		h := &storeHandle{bingoStore: s, close: func() {
			s.Close()
			pool.Close()
		}}
		// With NATS the gateway consumes relayed events, so the feed
		// listener is only needed without it.
		if !cfg.NATS.Enabled {
			h.listen = func(ctx context.Context) error { return s.Listen(ctx, dbCfg.DSN()) }
		}
		return h, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func setupPool(ctx context.Context, dbCfg dbconfig.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to postgres")
	return pool, nil
}

// setupSQLDB opens the lib/pq handle the outbox relay works on.
func setupSQLDB(ctx context.Context, dbCfg dbconfig.Config) (*sql.DB, error) {
	database, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return database, nil
}
