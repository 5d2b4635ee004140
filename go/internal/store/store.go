// Package store holds the contract shared by the SyncLayer implementations:
// request types, sentinel errors and the change feed.
package store

import (
	"errors"

	"github.com/google/uuid"
	"github.com/mcdev12/bingo/go/internal/models"
)

var (
	// ErrNotFound is returned when a game, player or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateCode is returned when a join code is already taken.
	ErrDuplicateCode = errors.New("duplicate join code")
)

// CreateGameParams holds the data needed to create a game
type CreateGameParams struct {
	Code         string
	Variant      models.Variant
	MaxWinners   int
	WinCondition models.WinCondition
	AdminID      uuid.UUID
}

// InsertPlayerParams holds the data needed to register a player
type InsertPlayerParams struct {
	GameID uuid.UUID
	UserID *uuid.UUID
	Name   string
	Card   models.Card
}

// CreateUserParams holds the data needed to create a user
type CreateUserParams struct {
	Name  string
	Email *string
	Role  models.UserRole
}
