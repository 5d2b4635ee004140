package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store/memory"
)

func TestCreateUser(t *testing.T) {
	app := NewApp(memory.New())
	ctx := context.Background()

	user, err := app.CreateUser(ctx, CreateUserRequest{Name: "  Ann ", Email: "Ann@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.Name)
	assert.Equal(t, models.UserRolePlayer, user.Role)
	require.NotNil(t, user.Email)
	assert.Equal(t, "ann@example.com", *user.Email)

	_, err = app.CreateUser(ctx, CreateUserRequest{Name: "Other", Email: "ann@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	admin, err := app.CreateUser(ctx, CreateUserRequest{Name: "Host", Role: models.UserRoleAdmin})
	require.NoError(t, err)
	assert.Nil(t, admin.Email)

	got, err := app.GetUser(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleAdmin, got.Role)

	got, err = app.GetUserByEmail(ctx, " ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestCreateUserValidation(t *testing.T) {
	app := NewApp(memory.New())
	ctx := context.Background()

	for name, req := range map[string]CreateUserRequest{
		"empty name":   {Name: " "},
		"bad email":    {Name: "x", Email: "not-an-email"},
		"unknown role": {Name: "x", Role: "owner"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := app.CreateUser(ctx, req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	_, err := app.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService(t *testing.T) {
	r := chi.NewRouter()
	NewService(NewApp(memory.New())).Routes(r)
	server := httptest.NewServer(r)
	defer server.Close()

	body, _ := json.Marshal(CreateUserRequest{Name: "ann", Role: models.UserRoleAdmin})
	resp, err := http.Post(server.URL+"/api/users", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	resp2, err := http.Get(server.URL + "/api/users/" + created.ID.String())
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3, err := http.Get(server.URL + "/api/users/" + uuid.NewString())
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)

	resp4, err := http.Post(server.URL+"/api/users", "application/json", bytes.NewReader([]byte(`{"name":""}`)))
	require.NoError(t, err)
	defer resp4.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp4.StatusCode)
}
