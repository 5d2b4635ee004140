package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bingo/go/internal/models"
)

func numberEvent(gameID uuid.UUID, n int) models.ChangeEvent {
	ev := models.NewChangeEvent(gameID, models.ChangeNumberDrawn, time.Now())
	ev.Number = &models.DrawnNumber{Number: n, Seq: n}
	return ev
}

func receive(t *testing.T, sub *Subscription) models.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return models.ChangeEvent{}
	}
}

func TestFeedDeliversInOrder(t *testing.T) {
	feed := NewFeed()
	gameID := uuid.New()
	sub := feed.Subscribe(context.Background(), gameID)
	defer sub.Close()

	for n := 1; n <= 200; n++ {
		feed.Publish(numberEvent(gameID, n))
	}

	for n := 1; n <= 200; n++ {
		ev := receive(t, sub)
		require.Equal(t, n, ev.Number.Number)
	}
}

func TestFeedFiltersGameAndTable(t *testing.T) {
	feed := NewFeed()
	gameID := uuid.New()
	other := uuid.New()

	numbersOnly := feed.Subscribe(context.Background(), gameID, models.TableNumbers)
	defer numbersOnly.Close()
	all := feed.Subscribe(context.Background(), uuid.Nil)
	defer all.Close()

	joined := models.NewChangeEvent(gameID, models.ChangePlayerJoined, time.Now())
	feed.Publish(numberEvent(other, 1), joined, numberEvent(gameID, 2))

	ev := receive(t, numbersOnly)
	assert.Equal(t, gameID, ev.GameID)
	assert.Equal(t, 2, ev.Number.Number)

	assert.Equal(t, other, receive(t, all).GameID)
	assert.Equal(t, models.ChangePlayerJoined, receive(t, all).Type)
	assert.Equal(t, models.ChangeNumberDrawn, receive(t, all).Type)
}

func TestSubscriptionCloseEndsStream(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe(context.Background(), uuid.Nil)
	require.Equal(t, 1, feed.Len())

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}
	assert.Equal(t, 0, feed.Len())

	// Publishing after close must not block.
	feed.Publish(numberEvent(uuid.New(), 1))
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	feed := NewFeed()
	ctx, cancel := context.WithCancel(context.Background())
	sub := feed.Subscribe(ctx, uuid.Nil)

	cancel()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed after cancel")
	}
}

func TestOnChange(t *testing.T) {
	feed := NewFeed()
	gameID := uuid.New()
	sub := feed.Subscribe(context.Background(), gameID)

	got := make(chan int, 3)
	done := make(chan error, 1)
	go func() {
		done <- OnChange(context.Background(), sub, func(ev models.ChangeEvent) {
			got <- ev.Number.Number
			if len(got) == 3 {
				sub.Close()
			}
		})
	}()

	feed.Publish(numberEvent(gameID, 5), numberEvent(gameID, 6), numberEvent(gameID, 7))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("OnChange did not return")
	}
	assert.Equal(t, 5, <-got)
	assert.Equal(t, 6, <-got)
	assert.Equal(t, 7, <-got)
}

func TestFeedClose(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe(context.Background(), uuid.Nil)
	feed.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok)

	late := feed.Subscribe(context.Background(), uuid.Nil)
	_, ok = <-late.Events()
	assert.False(t, ok)
}
