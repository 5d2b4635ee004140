// Package sqlite is the SyncLayer backed by a single SQLite file, for
// single-node deployments that want games to survive a restart.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store"
)

//go:embed schema.sql
var schema string

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Store implements the game SyncLayer and TxManager on database/sql.
// Change events are published to subscribers once their transaction commits.
type Store struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	txm    trm.Manager
	feed   *store.Feed
	clock  clockwork.Clock
}

type pendingKey struct{}

// pending holds the change events of an open transaction.
type pending struct {
	events []models.ChangeEvent
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	m, err := manager.New(trmsql.NewDefaultFactory(db))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tx manager: %w", err)
	}
	log.Info().Str("path", path).Msg("sqlite store opened")

	s := &Store{
		db:     db,
		getter: trmsql.DefaultCtxGetter,
		txm:    m,
		feed:   store.NewFeed(),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Do runs fn in a transaction. Nested calls join the outer transaction and
// events are published only once the outermost call commits.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(pendingKey{}).(*pending); ok {
		return s.txm.Do(ctx, fn)
	}

	p := &pending{}
	if err := s.txm.Do(context.WithValue(ctx, pendingKey{}, p), fn); err != nil {
		return err
	}
	s.feed.Publish(p.events...)
	return nil
}

// Subscribe streams committed changes of gameID (uuid.Nil for all games).
func (s *Store) Subscribe(ctx context.Context, gameID uuid.UUID, tables ...models.ChangeTable) (*store.Subscription, error) {
	return s.feed.Subscribe(ctx, gameID, tables...), nil
}

// Close ends every subscription and closes the database.
func (s *Store) Close() error {
	s.feed.Close()
	return s.db.Close()
}

func (s *Store) conn(ctx context.Context) trmsql.Tr {
	return s.getter.DefaultTrOrDB(ctx, s.db)
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

// emit publishes ev after the surrounding transaction commits, or at once
// outside of one.
func (s *Store) emit(ctx context.Context, ev models.ChangeEvent) {
	if p, ok := ctx.Value(pendingKey{}).(*pending); ok {
		p.events = append(p.events, ev)
		return
	}
	s.feed.Publish(ev)
}

func isUniqueViolation(err error, column string) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(sqliteErr.Error(), column)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
