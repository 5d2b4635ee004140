package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bingo/go/internal/game"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/outbox"
	"github.com/mcdev12/bingo/go/internal/store/memory"
)

type harness struct {
	app    *game.App
	svc    *Service
	server *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := memory.New()
	app := game.NewApp(st, st, game.WithSeed(1))
	svc := NewService(DefaultConnectionConfig(), app)

	r := chi.NewRouter()
	svc.Routes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	bridge, err := NewFeedBridge(ctx, svc.Connections(), app)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx, bridge) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &harness{app: app, svc: svc, server: server}
}

func (h *harness) dial(t *testing.T, gameID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws/game?game_id=" + gameID.String()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return h.svc.Connections().Stats().GameConnections[gameID.String()] > 0
	}, time.Second, 10*time.Millisecond)
	return conn
}

// readEvent returns the next event, skipping GameCreated which may or may not
// arrive depending on when the connection registered.
func readEvent(t *testing.T, conn *websocket.Conn) GameEvent {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev GameEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type != models.ChangeGameCreated {
			return ev
		}
	}
}

func TestGatewayStreamsGameChanges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := uuid.New()

	g, err := h.app.CreateGame(ctx, game.CreateGameRequest{AdminID: admin})
	require.NoError(t, err)

	conn := h.dial(t, g.ID)
	other := h.dial(t, uuid.New())

	_, err = h.app.Join(ctx, g.Code, game.JoinRequest{Name: "ann"})
	require.NoError(t, err)
	_, err = h.app.Join(ctx, g.Code, game.JoinRequest{Name: "bob"})
	require.NoError(t, err)
	_, err = h.app.StartGame(ctx, g.ID, admin)
	require.NoError(t, err)
	drawn, err := h.app.DrawNumber(ctx, g.ID, admin)
	require.NoError(t, err)

	want := []models.ChangeType{
		models.ChangePlayerJoined,
		models.ChangePlayerJoined,
		models.ChangeGameStatusChanged,
		models.ChangeNumberDrawn,
	}
	var last GameEvent
	for _, typ := range want {
		last = readEvent(t, conn)
		assert.Equal(t, typ, last.Type)
		assert.Equal(t, g.ID.String(), last.GameID)
	}

	change, err := ParseChange(&last)
	require.NoError(t, err)
	require.NotNil(t, change.Number)
	assert.Equal(t, drawn.Number.Number, change.Number.Number)

	// Observers of another game receive nothing.
	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err)
}

func TestWebSocketRejectsBadGameID(t *testing.T) {
	h := newHarness(t)

	for _, q := range []string{"", "?game_id=nope", "?game_id=" + uuid.Nil.String()} {
		resp, err := http.Get(h.server.URL + "/ws/game" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestConnectionStats(t *testing.T) {
	h := newHarness(t)
	gameID := uuid.New()
	h.dial(t, gameID)
	h.dial(t, gameID)

	resp, err := http.Get(h.server.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.TotalConnections)
	assert.Equal(t, 1, stats.ActiveGames)
}

func TestStateHandler(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	g, err := h.app.CreateGame(ctx, game.CreateGameRequest{AdminID: uuid.New()})
	require.NoError(t, err)
	_, err = h.app.Join(ctx, g.Code, game.JoinRequest{Name: "ann"})
	require.NoError(t, err)

	resp, err := http.Get(h.server.URL + "/api/games/" + g.ID.String() + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state game.GameState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, g.ID, state.Game.ID)
	assert.Len(t, state.Players, 1)

	resp, err = http.Get(h.server.URL + "/api/games/" + uuid.NewString() + "/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(h.server.URL + "/api/games/bad/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDecodeEnvelope(t *testing.T) {
	gameID := uuid.New()
	change := models.NewChangeEvent(gameID, models.ChangeNumberDrawn, time.Now().UTC())
	change.Number = &models.DrawnNumber{Number: 12, Seq: 1}
	payload, err := json.Marshal(change)
	require.NoError(t, err)

	data, err := json.Marshal(outbox.Envelope{
		EventID:   change.ID,
		EventType: string(change.Type),
		GameID:    gameID,
		Payload:   payload,
	})
	require.NoError(t, err)

	ev, err := decodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeNumberDrawn, ev.Type)
	assert.Equal(t, gameID.String(), ev.GameID)

	_, err = decodeEnvelope([]byte("{"))
	assert.ErrorIs(t, err, errMalformed)

	mismatched, err := json.Marshal(outbox.Envelope{EventID: change.ID, GameID: uuid.New(), Payload: payload})
	require.NoError(t, err)
	_, err = decodeEnvelope(mismatched)
	assert.ErrorIs(t, err, errMalformed)

	unknown := models.NewChangeEvent(gameID, "Mystery", time.Now())
	payload, err = json.Marshal(unknown)
	require.NoError(t, err)
	data, err = json.Marshal(outbox.Envelope{EventID: unknown.ID, GameID: gameID, Payload: payload})
	require.NoError(t, err)
	_, err = decodeEnvelope(data)
	assert.ErrorIs(t, err, errMalformed)
}
