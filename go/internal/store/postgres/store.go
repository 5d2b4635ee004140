// Package postgres is the SyncLayer backed by PostgreSQL. Every write also
// appends its change event to the bingo_outbox table and notifies listeners
// in the same transaction, so observers only ever see committed changes.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store"
)

//go:embed schema.sql
var schema string

// NotifyChannel is the channel every committed outbox row is announced on.
// The payload is the outbox row id.
const NotifyChannel = "bingo_outbox"

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store implements the game SyncLayer and TxManager on a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	getter *trmpgx.CtxGetter
	txm    trm.Manager
	feed   *store.Feed
}

// New creates a Store on pool.
func New(pool *pgxpool.Pool) (*Store, error) {
	m, err := manager.New(trmpgx.NewDefaultFactory(pool))
	if err != nil {
		return nil, fmt.Errorf("failed to create tx manager: %w", err)
	}
	return &Store{
		pool:   pool,
		getter: trmpgx.DefaultCtxGetter,
		txm:    m,
		feed:   store.NewFeed(),
	}, nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Info().Msg("postgres schema applied")
	return nil
}

// Do runs fn in a transaction. Nested calls join the outer transaction.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.txm.Do(ctx, fn)
}

func (s *Store) conn(ctx context.Context) trmpgx.Tr {
	return s.getter.DefaultTrOrDB(ctx, s.pool)
}

// emit records ev in the outbox and notifies listeners once the transaction commits.
func (s *Store) emit(ctx context.Context, ev models.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	query, args, err := psql.Insert("bingo_outbox").
		Columns("id", "game_id", "event_type", "payload").
		Values(ev.ID, ev.GameID, string(ev.Type), payload).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.conn(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	if _, err := s.conn(ctx).Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, ev.ID.String()); err != nil {
		return fmt.Errorf("failed to notify outbox event: %w", err)
	}
	return nil
}

// Subscribe streams committed changes of gameID (uuid.Nil for all games).
// Events reach subscribers once Listen is running.
func (s *Store) Subscribe(ctx context.Context, gameID uuid.UUID, tables ...models.ChangeTable) (*store.Subscription, error) {
	return s.feed.Subscribe(ctx, gameID, tables...), nil
}

// Close ends every subscription. The pool is owned by the caller.
func (s *Store) Close() {
	s.feed.Close()
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
