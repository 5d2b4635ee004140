package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store"
)

// ChangeSubscriber is a source of committed change events.
type ChangeSubscriber interface {
	Subscribe(ctx context.Context, gameID uuid.UUID, tables ...models.ChangeTable) (*store.Subscription, error)
}

// FeedBridge broadcasts the change feed of an in-process store, for
// deployments without a message bus.
type FeedBridge struct {
	connectionManager *ConnectionManager
	sub               *store.Subscription
}

// NewFeedBridge subscribes to every game right away, so changes committed
// before Start are still delivered. The subscription ends with ctx.
func NewFeedBridge(ctx context.Context, cm *ConnectionManager, source ChangeSubscriber) (*FeedBridge, error) {
	sub, err := source.Subscribe(ctx, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe to change feed: %w", err)
	}
	return &FeedBridge{connectionManager: cm, sub: sub}, nil
}

// Start forwards changes until ctx is done or the feed closes.
func (b *FeedBridge) Start(ctx context.Context) error {
	log.Info().Msg("forwarding change feed to WebSocket clients")
	err := store.OnChange(ctx, b.sub, b.forward)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *FeedBridge) forward(change models.ChangeEvent) {
	event, err := NewGameEvent(change)
	if err != nil {
		log.Error().Err(err).Str("event_id", change.ID.String()).Msg("failed to encode change")
		return
	}
	b.connectionManager.BroadcastToGame(change.GameID, event)
}
