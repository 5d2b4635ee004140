package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store"
)

// UsersRepository defines what the app layer needs from the store
type UsersRepository interface {
	CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// App handles users business logic
type App struct {
	repo UsersRepository
}

// NewApp creates a new users App
func NewApp(repo UsersRepository) *App {
	return &App{
		repo: repo,
	}
}

// CreateUser creates a new user with validation
func (a *App) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	req, err := normalizeCreateUserRequest(req)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var email *string
	if req.Email != "" {
		existing, err := a.repo.GetUserByEmail(ctx, req.Email)
		if err == nil && existing != nil {
			return nil, fmt.Errorf("user with email %s: %w", req.Email, ErrEmailTaken)
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		email = &req.Email
	}

	user, err := a.repo.CreateUser(ctx, store.CreateUserParams{
		Name:  req.Name,
		Email: email,
		Role:  req.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("name", user.Name).
		Str("role", string(user.Role)).
		Msg("created user")
	return user, nil
}

// GetUser retrieves a user by ID
func (a *App) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := a.repo.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email
func (a *App) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := a.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func normalizeCreateUserRequest(req CreateUserRequest) (CreateUserRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return req, fmt.Errorf("name is required: %w", ErrInvalidRequest)
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return req, fmt.Errorf("email format is invalid: %w", ErrInvalidRequest)
		}
	}

	switch req.Role {
	case "":
		req.Role = models.UserRolePlayer
	case models.UserRoleAdmin, models.UserRolePlayer:
	default:
		return req, fmt.Errorf("unknown role %q: %w", req.Role, ErrInvalidRequest)
	}
	return req, nil
}
