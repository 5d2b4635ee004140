package game

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bingo/go/internal/models"
)

func TestViewIgnoresDuplicates(t *testing.T) {
	gameID := uuid.New()
	view := NewView(gameID)
	view.Load(&GameState{Game: models.Game{ID: gameID, Status: models.GameStatusPlaying, Variant: models.Variant75}})

	drawn := models.NewChangeEvent(gameID, models.ChangeNumberDrawn, time.Now())
	drawn.Number = &models.DrawnNumber{Number: 42, Seq: 1}

	assert.True(t, view.Apply(drawn))
	assert.False(t, view.Apply(drawn), "redelivered number must be ignored")

	player := models.Player{ID: uuid.New(), GameID: gameID, Name: "ann"}
	joined := models.NewChangeEvent(gameID, models.ChangePlayerJoined, time.Now())
	joined.Player = &player
	assert.True(t, view.Apply(joined))
	assert.False(t, view.Apply(joined))

	won := player
	won.IsWinner = true
	won.WinnerRank = 1
	winner := models.NewChangeEvent(gameID, models.ChangeWinnerDeclared, time.Now())
	winner.Player = &won
	assert.True(t, view.Apply(winner))

	other := models.NewChangeEvent(uuid.New(), models.ChangeNumberDrawn, time.Now())
	other.Number = &models.DrawnNumber{Number: 7, Seq: 1}
	assert.False(t, view.Apply(other))

	snap := view.Snapshot()
	assert.Equal(t, []int{42}, models.Numbers(snap.DrawnNumbers))
	assert.Equal(t, 42, *snap.CurrentNumber)
	require.Len(t, snap.Winners, 1)
	assert.Equal(t, player.ID, snap.Winners[0].ID)
	assert.Equal(t, 74, snap.Remaining)
}

func TestViewKeepsFinished(t *testing.T) {
	gameID := uuid.New()
	view := NewView(gameID)
	view.Load(&GameState{Game: models.Game{ID: gameID, Status: models.GameStatusPlaying}})

	finished := models.NewChangeEvent(gameID, models.ChangeGameStatusChanged, time.Now())
	finished.Game = &models.Game{ID: gameID, Status: models.GameStatusFinished}
	assert.True(t, view.Apply(finished))

	late := models.NewChangeEvent(gameID, models.ChangeGameStatusChanged, time.Now())
	late.Game = &models.Game{ID: gameID, Status: models.GameStatusPlaying}
	assert.False(t, view.Apply(late))
	assert.Equal(t, models.GameStatusFinished, view.Snapshot().Game.Status)
}

func TestWatchFollowsGame(t *testing.T) {
	card := bandCard(0)
	f := newFixture(t, CreateGameRequest{MaxWinners: 1}, card, bandCard(10))
	f.join(t, "ann", "bob")
	f.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates := make(chan *GameState, 64)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, f.app, f.game.ID, func(s *GameState) { updates <- s })
	}()

	// Initial snapshot arrives before any draw.
	select {
	case s := <-updates:
		assert.Equal(t, models.GameStatusPlaying, s.Game.Status)
	case <-ctx.Done():
		t.Fatal("no initial snapshot")
	}

	f.drawer.queue = append(f.drawer.queue, card[0][:]...)
	for range card[0] {
		_, err := f.app.DrawNumber(ctx, f.game.ID, f.admin)
		require.NoError(t, err)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("watch did not return after the game finished")
	}

	var last *GameState
	for len(updates) > 0 {
		last = <-updates
	}
	require.NotNil(t, last)
	assert.Equal(t, models.GameStatusFinished, last.Game.Status)
	assert.Len(t, last.DrawnNumbers, 5)
	require.Len(t, last.Winners, 1)
	assert.Equal(t, "ann", last.Winners[0].Name)
}
