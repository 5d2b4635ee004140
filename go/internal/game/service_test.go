package game

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store/memory"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
	auto   *AutoDrawer
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	st := memory.New()
	t.Cleanup(st.Close)

	app := NewApp(st, st, WithSeed(5))
	auto := NewAutoDrawer(app, clockwork.NewFakeClock())
	t.Cleanup(auto.StopAll)

	r := chi.NewRouter()
	NewService(app, auto).Routes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &apiClient{t: t, server: server, auto: auto}
}

func (c *apiClient) do(method, path string, actor uuid.UUID, body any, out any) int {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.server.URL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor != uuid.Nil {
		req.Header.Set(ActorHeader, actor.String())
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestServiceGameFlow(t *testing.T) {
	api := newAPI(t)
	admin := uuid.New()

	var game models.Game
	status := api.do(http.MethodPost, "/api/games", admin, CreateGameRequest{MaxWinners: 2}, &game)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, admin, game.AdminID)
	assert.Equal(t, 2, game.MaxWinners)

	base := "/api/games/" + game.ID.String()

	var p models.Player
	status = api.do(http.MethodPost, "/api/games/join", uuid.Nil, joinGameRequest{Code: game.Code, Name: "ann"}, &p)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "ann", p.Name)

	status = api.do(http.MethodPost, base+"/start", admin, nil, nil)
	assert.Equal(t, http.StatusConflict, status, "one player is not enough")

	status = api.do(http.MethodPost, "/api/games/join", uuid.Nil, joinGameRequest{Code: game.Code, Name: "bob"}, nil)
	require.Equal(t, http.StatusCreated, status)

	status = api.do(http.MethodPost, base+"/draw", admin, nil, nil)
	assert.Equal(t, http.StatusConflict, status, "draw before start")

	status = api.do(http.MethodPost, base+"/start", uuid.New(), nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status = api.do(http.MethodPost, base+"/start", admin, nil, &game)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.GameStatusPlaying, game.Status)

	var res DrawResult
	status = api.do(http.MethodPost, base+"/draw", admin, nil, &res)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, res.Number.Seq)

	var state GameState
	status = api.do(http.MethodGet, base, uuid.Nil, nil, &state)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, state.Players, 2)
	assert.Equal(t, []int{res.Number.Number}, models.Numbers(state.DrawnNumbers))

	status = api.do(http.MethodPost, base+"/finish", admin, nil, &game)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.GameStatusFinished, game.Status)

	status = api.do(http.MethodPost, base+"/draw", admin, nil, nil)
	assert.Equal(t, http.StatusConflict, status)

	var history []models.Game
	status = api.do(http.MethodGet, "/api/users/"+admin.String()+"/games", uuid.Nil, nil, &history)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, history, 1)
	assert.Equal(t, game.ID, history[0].ID)
}

func TestServiceErrors(t *testing.T) {
	api := newAPI(t)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/games/"+uuid.NewString(), uuid.Nil, nil, nil))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/games/not-a-uuid", uuid.Nil, nil, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, api.do(http.MethodPost, "/api/games", uuid.Nil, CreateGameRequest{}, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, api.do(http.MethodPost, "/api/games", uuid.New(), CreateGameRequest{Variant: 60}, nil))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/api/games/join", uuid.Nil, joinGameRequest{Code: "12345678", Name: "x"}, nil))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/users/nope/games", uuid.Nil, nil, nil))
}

func TestServiceAutoDraw(t *testing.T) {
	api := newAPI(t)
	admin := uuid.New()

	var game models.Game
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/games", admin, CreateGameRequest{}, &game))
	base := "/api/games/" + game.ID.String()

	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, base+"/autodraw", admin, autoDrawRequest{IntervalMS: 1000}, nil))

	for _, name := range []string{"a", "b"} {
		require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/games/join", uuid.Nil, joinGameRequest{Code: game.Code, Name: name}, nil))
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, base+"/start", admin, nil, nil))

	assert.Equal(t, http.StatusUnprocessableEntity, api.do(http.MethodPost, base+"/autodraw", admin, autoDrawRequest{IntervalMS: 10}, nil))
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, base+"/autodraw", uuid.New(), autoDrawRequest{IntervalMS: 1000}, nil))

	var resp autoDrawResponse
	require.Equal(t, http.StatusAccepted, api.do(http.MethodPost, base+"/autodraw", admin, autoDrawRequest{IntervalMS: 1000}, &resp))
	assert.True(t, resp.Active)
	assert.Equal(t, "1s", resp.Interval)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, base+"/autodraw", uuid.New(), nil, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodDelete, base+"/autodraw", admin, nil, &resp))
	assert.False(t, resp.Active)
}

func TestFinishByOtherActorKeepsAutoDraw(t *testing.T) {
	api := newAPI(t)
	admin := uuid.New()

	var game models.Game
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/games", admin, CreateGameRequest{}, &game))
	base := "/api/games/" + game.ID.String()
	for _, name := range []string{"a", "b"} {
		require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/games/join", uuid.Nil, joinGameRequest{Code: game.Code, Name: name}, nil))
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, base+"/start", admin, nil, nil))
	require.Equal(t, http.StatusAccepted, api.do(http.MethodPost, base+"/autodraw", admin, autoDrawRequest{IntervalMS: 1000}, nil))

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, base+"/finish", uuid.New(), nil, nil))
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, base+"/finish", uuid.Nil, nil, nil))
	assert.True(t, api.auto.Active(game.ID))

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, base+"/finish", admin, nil, nil))
	assert.False(t, api.auto.Active(game.ID))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrGameNotFound, http.StatusNotFound},
		{ErrUnauthorized, http.StatusForbidden},
		{ErrGameFinished, http.StatusConflict},
		{ErrPoolExhausted, http.StatusConflict},
		{ErrInvalidRequest, http.StatusUnprocessableEntity},
		{syncErr("draw number", assert.AnError), http.StatusBadGateway},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(tt.err), tt.err.Error())
	}
}
