package main

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/bingo/go/internal/game"
	"github.com/mcdev12/bingo/go/internal/gateway"
	"github.com/mcdev12/bingo/go/internal/users"
)

type Services struct {
	GameApp  *game.App
	AutoDraw *game.AutoDrawer
	Games    *game.Service
	Users    *users.Service
	Gateway  *gateway.Service
}

func setupServices(st bingoStore, cfg *Config) *Services {
	// Wire up dependency injection chain
	// Store → App layer → Service layer

	var opts []game.Option
	if cfg.Game.Seed != 0 {
		opts = append(opts, game.WithSeed(cfg.Game.Seed))
	}
	gameApp := game.NewApp(st, st, opts...)

	var autoDraw *game.AutoDrawer
	if cfg.Game.AutoDraw {
		autoDraw = game.NewAutoDrawer(gameApp, clockwork.NewRealClock())
	}

	userApp := users.NewApp(st)

	wsConfig := gateway.DefaultConnectionConfig()
	if !allowsAnyOrigin(cfg.Server.AllowedOrigins) {
		wsConfig.CheckOrigin = originChecker(cfg.Server.AllowedOrigins)
	}

	return &Services{
		GameApp:  gameApp,
		AutoDraw: autoDraw,
		Games:    game.NewService(gameApp, autoDraw),
		Users:    users.NewService(userApp),
		Gateway:  gateway.NewService(wsConfig, gameApp),
	}
}

// setupEventSource picks what feeds the gateway: the JetStream stream the
// relay publishes to, or the store's own change feed.
func setupEventSource(ctx context.Context, cfg *Config, st bingoStore, gw *gateway.Service) (gateway.EventSource, func(), error) {
	if cfg.NATS.Enabled {
		consumerCfg := gateway.DefaultJetStreamConsumerConfig()
		consumerCfg.Stream = cfg.jetStream()
		consumerCfg.ConsumerName = cfg.NATS.ConsumerName

		consumer, err := gateway.NewEventConsumer(ctx, gw.Connections(), consumerCfg)
		if err != nil {
			return nil, nil, err
		}
		return consumer, func() { _ = consumer.Stop() }, nil
	}

	bridge, err := gateway.NewFeedBridge(ctx, gw.Connections(), st)
	if err != nil {
		return nil, nil, err
	}
	return bridge, func() {}, nil
}
