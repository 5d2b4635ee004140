package users

import "github.com/mcdev12/bingo/go/internal/models"

// CreateUserRequest represents the data needed to create a new user
type CreateUserRequest struct {
	Name  string          `json:"name"`
	Email string          `json:"email,omitempty"`
	Role  models.UserRole `json:"role,omitempty"`
}
