package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store"
)

// CreateUser stores a new user.
func (s *Store) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := models.User{
		ID:        uuid.New(),
		Name:      params.Name,
		Email:     params.Email,
		Role:      params.Role,
		CreatedAt: s.now(),
	}
	s.users[user.ID] = user
	return &user, nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email != nil && *u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, store.ErrNotFound
}
