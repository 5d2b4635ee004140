package bingo

import (
	rand "math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/bingo/go/internal/models"
)

// NumberDrawer allocates the next number of a game. It holds no per-game state;
// callers pass the numbers already drawn. Safe for concurrent use.
type NumberDrawer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewNumberDrawer creates a drawer using rng. A nil rng is seeded from crypto/rand.
func NewNumberDrawer(rng *rand.Rand) *NumberDrawer {
	if rng == nil {
		rng = NewSeededRand()
	}
	return &NumberDrawer{rng: rng}
}

// Draw picks a number uniformly from [1, variant] minus alreadyDrawn.
// gameID is only carried for callers' logging; the choice does not depend on it.
func (d *NumberDrawer) Draw(gameID uuid.UUID, variant models.Variant, alreadyDrawn []int) (int, error) {
	remaining, err := Remaining(variant, alreadyDrawn)
	if err != nil {
		return 0, err
	}
	if len(remaining) == 0 {
		return 0, ErrPoolExhausted
	}

	d.mu.Lock()
	i := d.rng.IntN(len(remaining))
	d.mu.Unlock()

	return remaining[i], nil
}

// Remaining returns the numbers of variant not yet drawn, ascending.
func Remaining(variant models.Variant, alreadyDrawn []int) ([]int, error) {
	if !variant.Valid() {
		return nil, &InvalidVariantError{Variant: int(variant)}
	}

	drawn := make([]bool, int(variant)+1)
	for _, n := range alreadyDrawn {
		if n >= 1 && n <= int(variant) {
			drawn[n] = true
		}
	}

	remaining := make([]int, 0, max(int(variant)-len(alreadyDrawn), 0))
	for n := 1; n <= int(variant); n++ {
		if !drawn[n] {
			remaining = append(remaining, n)
		}
	}
	return remaining, nil
}
