package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/bingo/go/internal/models"
)

// Feed fans committed change events out to subscriptions. Publishing never blocks
// and never drops: each subscription buffers its backlog and delivers it in order.
type Feed struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[*Subscription]struct{})}
}

// Publish delivers events, in order, to every matching subscription.
func (f *Feed) Publish(events ...models.ChangeEvent) {
	if len(events) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subs {
		for _, ev := range events {
			if sub.matches(ev) {
				sub.push(ev)
			}
		}
	}
}

// Subscribe registers a subscription for gameID (uuid.Nil for every game) restricted to
// tables (none means all). It ends when ctx is done or Close is called.
func (f *Feed) Subscribe(ctx context.Context, gameID uuid.UUID, tables ...models.ChangeTable) *Subscription {
	sub := &Subscription{
		feed:   f,
		gameID: gameID,
		wake:   make(chan struct{}, 1),
		events: make(chan models.ChangeEvent),
		done:   make(chan struct{}),
	}
	if len(tables) > 0 {
		sub.tables = make(map[models.ChangeTable]bool, len(tables))
		for _, t := range tables {
			sub.tables[t] = true
		}
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		sub.closeDone()
		close(sub.events)
		return sub
	}
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	go sub.pump()
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub
}

// Len returns the number of live subscriptions.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close ends every subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	subs := make([]*Subscription, 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	f.closed = true
	f.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	delete(f.subs, sub)
	f.mu.Unlock()
}

// Subscription is a cancellable, ordered stream of change events.
type Subscription struct {
	feed   *Feed
	gameID uuid.UUID
	tables map[models.ChangeTable]bool

	mu    sync.Mutex
	queue []models.ChangeEvent

	wake     chan struct{}
	events   chan models.ChangeEvent
	done     chan struct{}
	doneOnce sync.Once
}

// Events returns the delivery channel. It is closed once the subscription ends.
func (s *Subscription) Events() <-chan models.ChangeEvent {
	return s.events
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.feed.remove(s)
	s.closeDone()
	return nil
}

func (s *Subscription) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Subscription) matches(ev models.ChangeEvent) bool {
	if s.gameID != uuid.Nil && ev.GameID != s.gameID {
		return false
	}
	return s.tables == nil || s.tables[ev.Table]
}

func (s *Subscription) push(ev models.ChangeEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.events)

	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}

		if len(batch) > 0 {
			continue
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}

// OnChange invokes cb for every event of sub until ctx is done or sub ends.
func OnChange(ctx context.Context, sub *Subscription, cb func(models.ChangeEvent)) error {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			cb(ev)
		}
	}
}
