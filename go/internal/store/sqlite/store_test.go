package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bingo/go/internal/game"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testCard() models.Card {
	var card models.Card
	card[0] = [5]int{1, 16, 31, 46, 61}
	card[models.FreeRow][models.FreeCol] = models.FreeCell
	return card
}

func TestGameLifecycle(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "bingo.db"))
	ctx := context.Background()
	admin := uuid.New()
	userID := uuid.New()

	g, err := s.CreateGame(ctx, store.CreateGameParams{
		Code: "ABC123", Variant: models.Variant75, MaxWinners: 1,
		WinCondition: models.WinConditionLine, AdminID: admin,
	})
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusPending, g.Status)

	_, err = s.CreateGame(ctx, store.CreateGameParams{
		Code: "ABC123", Variant: models.Variant75, MaxWinners: 1,
		WinCondition: models.WinConditionLine, AdminID: admin,
	})
	assert.ErrorIs(t, err, store.ErrDuplicateCode)

	byCode, err := s.GetGameByCode(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, g.ID, byCode.ID)
	assert.Equal(t, models.WinConditionLine, byCode.WinCondition)

	card := testCard()
	p1, err := s.InsertPlayer(ctx, store.InsertPlayerParams{GameID: g.ID, Name: "ann", Card: card, UserID: &userID})
	require.NoError(t, err)
	_, err = s.InsertPlayer(ctx, store.InsertPlayerParams{GameID: g.ID, Name: "bob", Card: card})
	require.NoError(t, err)
	_, err = s.InsertPlayer(ctx, store.InsertPlayerParams{GameID: uuid.New(), Name: "eve", Card: card})
	assert.ErrorIs(t, err, store.ErrNotFound)

	players, err := s.ListPlayers(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, "ann", players[0].Name)
	assert.Equal(t, card, players[0].Card)
	require.NotNil(t, players[0].UserID)
	assert.Equal(t, userID, *players[0].UserID)
	assert.Nil(t, players[1].UserID)

	started, err := s.UpdateGameStatus(ctx, g.ID, models.GameStatusPlaying)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusPlaying, started.Status)
	assert.NotNil(t, started.StartedAt)

	d, inserted, err := s.AppendDrawnNumber(ctx, g.ID, 16)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, 1, d.Seq)

	d, inserted, err = s.AppendDrawnNumber(ctx, g.ID, 16)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, 1, d.Seq)

	d, _, err = s.AppendDrawnNumber(ctx, g.ID, 31)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Seq)

	drawn, err := s.ListDrawnNumbers(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{16, 31}, models.Numbers(drawn))

	w, err := s.RecordWinner(ctx, g.ID, p1.ID, 1, models.Progress{Marked: 5, BestRow: 5, BestColumn: 1})
	require.NoError(t, err)
	assert.True(t, w.IsWinner)
	assert.Equal(t, 1, w.WinnerRank)

	progress, err := s.WinnerProgress(ctx, p1.ID)
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, 5, progress.BestRow)

	games, err := s.ListGamesByActor(ctx, admin, 10)
	require.NoError(t, err)
	require.Len(t, games, 1)
	games, err = s.ListGamesByActor(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, games, 1)
	games, err = s.ListGamesByActor(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, games)

	_, err = s.GetGame(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.RecordWinner(ctx, g.ID, uuid.New(), 2, models.Progress{})
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UpdateGameStatus(ctx, uuid.New(), models.GameStatusFinished)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransactionRollback(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "bingo.db"))
	ctx := context.Background()

	g, err := s.CreateGame(ctx, store.CreateGameParams{
		Code: "ROLL01", Variant: models.Variant90, MaxWinners: 1,
		WinCondition: models.WinConditionFull, AdminID: uuid.New(),
	})
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx, g.ID)
	require.NoError(t, err)
	defer sub.Close()

	boom := errors.New("boom")
	err = s.Do(ctx, func(ctx context.Context) error {
		if _, _, err := s.AppendDrawnNumber(ctx, g.ID, 42); err != nil {
			return err
		}
		if _, err := s.UpdateGameStatus(ctx, g.ID, models.GameStatusFinished); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	drawn, err := s.ListDrawnNumbers(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, drawn)

	got, err := s.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusPending, got.Status)

	select {
	case ev := <-sub.Events():
		t.Fatalf("rolled back change was published: %s", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNestedDoPublishesAfterCommit(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "bingo.db"))
	ctx := context.Background()

	g, err := s.CreateGame(ctx, store.CreateGameParams{
		Code: "NEST01", Variant: models.Variant75, MaxWinners: 1,
		WinCondition: models.WinConditionLine, AdminID: uuid.New(),
	})
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx, g.ID)
	require.NoError(t, err)
	defer sub.Close()

	err = s.Do(ctx, func(ctx context.Context) error {
		err := s.Do(ctx, func(ctx context.Context) error {
			_, _, err := s.AppendDrawnNumber(ctx, g.ID, 7)
			return err
		})
		if err != nil {
			return err
		}

		select {
		case ev := <-sub.Events():
			t.Errorf("change published before commit: %s", ev.Type)
		case <-time.After(50 * time.Millisecond):
		}
		_, err = s.UpdateGameStatus(ctx, g.ID, models.GameStatusFinished)
		return err
	})
	require.NoError(t, err)

	var types []models.ChangeType
	for len(types) < 2 {
		select {
		case ev := <-sub.Events():
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("got %v, want two committed changes", types)
		}
	}
	assert.Equal(t, []models.ChangeType{models.ChangeNumberDrawn, models.ChangeGameStatusChanged}, types)

	drawn, err := s.ListDrawnNumbers(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, drawn, 1)
}

func TestNestedDoFailureRollsBackOuter(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "bingo.db"))
	ctx := context.Background()

	g, err := s.CreateGame(ctx, store.CreateGameParams{
		Code: "NEST02", Variant: models.Variant75, MaxWinners: 1,
		WinCondition: models.WinConditionLine, AdminID: uuid.New(),
	})
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx, g.ID)
	require.NoError(t, err)
	defer sub.Close()

	boom := errors.New("boom")
	err = s.Do(ctx, func(ctx context.Context) error {
		if _, _, err := s.AppendDrawnNumber(ctx, g.ID, 7); err != nil {
			return err
		}
		return s.Do(ctx, func(ctx context.Context) error {
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	drawn, err := s.ListDrawnNumbers(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, drawn)

	select {
	case ev := <-sub.Events():
		t.Fatalf("rolled back change was published: %s", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUsers(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "bingo.db"))
	ctx := context.Background()

	email := "ann@example.com"
	u, err := s.CreateUser(ctx, store.CreateUserParams{Name: "ann", Email: &email, Role: models.UserRoleAdmin})
	require.NoError(t, err)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann", got.Name)
	require.NotNil(t, got.Email)
	assert.Equal(t, email, *got.Email)
	assert.Equal(t, models.UserRoleAdmin, got.Role)

	byEmail, err := s.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	anon, err := s.CreateUser(ctx, store.CreateUserParams{Name: "bob", Role: models.UserRolePlayer})
	require.NoError(t, err)
	got, err = s.GetUser(ctx, anon.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Email)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGameSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bingo.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)

	app := game.NewApp(s, s, game.WithSeed(7))
	admin := uuid.New()
	g, err := app.CreateGame(ctx, game.CreateGameRequest{AdminID: admin})
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx, g.ID, models.TableNumbers)
	require.NoError(t, err)
	defer sub.Close()

	_, err = app.Join(ctx, g.Code, game.JoinRequest{Name: "ann"})
	require.NoError(t, err)
	_, err = app.Join(ctx, g.Code, game.JoinRequest{Name: "bob"})
	require.NoError(t, err)
	_, err = app.StartGame(ctx, g.ID, admin)
	require.NoError(t, err)

	var last *game.DrawResult
	for i := 0; i < int(models.Variant75); i++ {
		last, err = app.DrawNumber(ctx, g.ID, admin)
		require.NoError(t, err)

		select {
		case ev := <-sub.Events():
			require.NotNil(t, ev.Number)
			assert.Equal(t, last.Number, *ev.Number)
		case <-time.After(time.Second):
			t.Fatal("no NumberDrawn event")
		}

		if last.Game.Status == models.GameStatusFinished {
			break
		}
	}
	require.Equal(t, models.GameStatusFinished, last.Game.Status)
	require.NoError(t, s.Close())

	reopened := openStore(t, path)
	state, err := game.NewApp(reopened, reopened).State(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusFinished, state.Game.Status)
	assert.Len(t, state.Winners, 1)
	for i, d := range state.DrawnNumbers {
		assert.Equal(t, i+1, d.Seq)
	}
	assert.Equal(t, last.Number.Number, *state.CurrentNumber)
}
