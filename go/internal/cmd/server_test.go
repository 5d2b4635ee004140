package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bingo/go/internal/game"
	"github.com/mcdev12/bingo/go/internal/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := defaultConfig()
	st, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(st.close)

	srv := httptest.NewServer(setupHandler(cfg, setupServices(st, cfg)))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, actor uuid.UUID, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(game.ActorHeader, actor.String())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, driverMemory, health.Store)
}

func TestServerPlaysGame(t *testing.T) {
	srv := newTestServer(t)
	admin := uuid.New()

	resp := postJSON(t, srv.URL+"/api/games", admin, game.CreateGameRequest{
		Variant: models.Variant75, WinCondition: models.WinConditionFull, MaxWinners: 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Game
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, admin, created.AdminID)

	for _, name := range []string{"ann", "bob"} {
		resp := postJSON(t, srv.URL+"/api/games/join", uuid.Nil, map[string]string{"code": created.Code, "name": name})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/games/"+created.ID.String()+"/start", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/games/"+created.ID.String()+"/draw", uuid.New(), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/games/"+created.ID.String()+"/draw", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stateResp, err := http.Get(srv.URL + "/api/games/" + created.ID.String() + "/state")
	require.NoError(t, err)
	defer stateResp.Body.Close()
	require.Equal(t, http.StatusOK, stateResp.StatusCode)

	var state game.GameState
	require.NoError(t, json.NewDecoder(stateResp.Body).Decode(&state))
	assert.Equal(t, models.GameStatusPlaying, state.Game.Status)
	assert.Len(t, state.Players, 2)
	assert.Len(t, state.DrawnNumbers, 1)
	assert.Equal(t, 74, state.Remaining)
}

func TestOriginChecker(t *testing.T) {
	assert.True(t, allowsAnyOrigin(nil))
	assert.True(t, allowsAnyOrigin([]string{"*"}))
	assert.False(t, allowsAnyOrigin([]string{"https://bingo.example"}))

	check := originChecker([]string{"https://bingo.example"})
	req := httptest.NewRequest(http.MethodGet, "/ws/game", nil)
	assert.True(t, check(req), "non-browser clients send no origin")

	req.Header.Set("Origin", "https://bingo.example")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
}

func TestSimulateIsReproducible(t *testing.T) {
	cmd := &SimulateCmd{Players: 3, Variant: 75, WinCondition: "full", MaxWinners: 1, Seed: 42}

	var first, second bytes.Buffer
	require.NoError(t, cmd.simulate(context.Background(), &first))
	require.NoError(t, cmd.simulate(context.Background(), &second))

	assert.Contains(t, first.String(), "game finished after")
	assert.Contains(t, first.String(), "winner #1: player-")

	// Everything after the header line, which carries the random game id.
	_, a, _ := strings.Cut(first.String(), "\n")
	_, b, _ := strings.Cut(second.String(), "\n")
	assert.Equal(t, a, b)
}

func TestSimulateNeedsTwoPlayers(t *testing.T) {
	cmd := &SimulateCmd{Players: 1, Variant: 75, WinCondition: "line", MaxWinners: 1}
	err := cmd.simulate(context.Background(), &bytes.Buffer{})
	assert.ErrorIs(t, err, game.ErrInsufficientPlayers)
}
