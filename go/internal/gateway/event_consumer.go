package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/outbox"
)

// errMalformed marks messages that can never be processed.
var errMalformed = errors.New("malformed event message")

// JetStreamConsumerConfig holds configuration for the JetStream consumer
type JetStreamConsumerConfig struct {
	Stream        outbox.JetStreamConfig
	ConsumerName  string        // Durable name, one per gateway instance
	MaxDeliver    int           // Max delivery attempts
	AckWait       time.Duration // How long to wait for ack
	MaxAckPending int           // Max messages pending ack
}

// DefaultJetStreamConsumerConfig returns default JetStream consumer configuration
func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		Stream:        outbox.DefaultJetStreamConfig(),
		ConsumerName:  "bingo-gateway",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
	}
}

// EventConsumer consumes relayed change events from JetStream and broadcasts
// them to WebSocket clients.
type EventConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	consumer          jetstream.Consumer
	config            JetStreamConsumerConfig
}

// NewEventConsumer connects to NATS and creates or updates the durable consumer.
func NewEventConsumer(ctx context.Context, cm *ConnectionManager, config JetStreamConsumerConfig) (*EventConsumer, error) {
	nc, err := outbox.Connect(config.Stream)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if err := outbox.EnsureStream(ctx, js, config.Stream); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, config.Stream.StreamName, jetstream.ConsumerConfig{
		Name:          config.ConsumerName,
		Durable:       config.ConsumerName,
		Description:   "Bingo gateway WebSocket consumer",
		FilterSubject: config.Stream.SubjectPrefix + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    config.MaxDeliver,
		AckWait:       config.AckWait,
		MaxAckPending: config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("consumer", config.ConsumerName).
		Str("stream", config.Stream.StreamName).
		Msg("JetStream consumer ready")

	return &EventConsumer{
		connectionManager: cm,
		nc:                nc,
		consumer:          consumer,
		config:            config,
	}, nil
}

// Start consumes events until ctx is done.
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			ec.ack(msg, ec.processMessage(msg.Data()))
		}
	}
}

func (ec *EventConsumer) ack(msg jetstream.Msg, err error) {
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
	case errors.Is(err, errMalformed):
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping malformed message")
		if termErr := msg.Term(); termErr != nil {
			log.Error().Err(termErr).Msg("failed to TERM message")
		}
	default:
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process message")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error().Err(nakErr).Msg("failed to NAK message")
		}
	}
}

// processMessage decodes an outbox envelope and broadcasts its change.
func (ec *EventConsumer) processMessage(data []byte) error {
	event, err := decodeEnvelope(data)
	if err != nil {
		return err
	}

	gameID, _ := ParseGameID(event.GameID)
	ec.connectionManager.BroadcastToGame(gameID, event)

	log.Debug().
		Str("event_id", event.ID).
		Str("game_id", event.GameID).
		Str("event_type", string(event.Type)).
		Msg("event broadcasted to WebSocket clients")
	return nil
}

// decodeEnvelope turns a published outbox envelope into a client event.
func decodeEnvelope(data []byte) (*GameEvent, error) {
	var envelope outbox.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: unmarshal envelope: %v", errMalformed, err)
	}

	var change models.ChangeEvent
	if err := json.Unmarshal(envelope.Payload, &change); err != nil {
		return nil, fmt.Errorf("%w: unmarshal change event: %v", errMalformed, err)
	}
	if !knownChangeType(change.Type) {
		return nil, fmt.Errorf("%w: unknown event type %q", errMalformed, change.Type)
	}
	if change.GameID != envelope.GameID {
		return nil, fmt.Errorf("%w: envelope game %s does not match change game %s", errMalformed, envelope.GameID, change.GameID)
	}

	return NewGameEvent(change)
}

// Stop closes the NATS connection.
func (ec *EventConsumer) Stop() error {
	log.Info().Msg("stopping event consumer")
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}
