package game

import (
	"errors"
	"fmt"

	"github.com/mcdev12/bingo/go/internal/bingo"
)

var (
	ErrGameNotFound        = errors.New("game not found")
	ErrGameFinished        = errors.New("game is finished")
	ErrGameNotPlaying      = errors.New("game is not in progress")
	ErrInsufficientPlayers = errors.New("at least 2 players are required to start a game")
	ErrUnauthorized        = errors.New("only the game admin may do this")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidRequest      = errors.New("invalid request")

	// ErrPoolExhausted is returned by DrawNumber once every number has been drawn.
	ErrPoolExhausted = bingo.ErrPoolExhausted

	errStaleDraw = errors.New("number was already drawn by another writer")
)

// SyncLayerError wraps a failure of the persistence layer.
type SyncLayerError struct {
	Op  string
	Err error
}

func (e *SyncLayerError) Error() string {
	return fmt.Sprintf("sync layer: %s: %v", e.Op, e.Err)
}

func (e *SyncLayerError) Unwrap() error {
	return e.Err
}

func syncErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *SyncLayerError
	if errors.As(err, &se) {
		return err
	}
	return &SyncLayerError{Op: op, Err: err}
}
