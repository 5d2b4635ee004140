package bingo

import (
	"errors"
	"fmt"
)

// ErrPoolExhausted is returned when every number of the variant has been drawn.
var ErrPoolExhausted = errors.New("number pool exhausted")

// InvalidVariantError is returned for a variant other than 75 or 90.
type InvalidVariantError struct {
	Variant int
}

func (e *InvalidVariantError) Error() string {
	return fmt.Sprintf("invalid variant %d: must be 75 or 90", e.Variant)
}
