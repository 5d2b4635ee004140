package bingo

import (
	rand "math/rand/v2"
	"slices"
	"sync"

	"github.com/mcdev12/bingo/go/internal/models"
)

// Band is the inclusive number range a card column draws from.
type Band struct {
	Min int
	Max int
}

// Bands returns the five column bands of a variant.
func Bands(variant models.Variant) ([models.CardSize]Band, error) {
	var bands [models.CardSize]Band
	if !variant.Valid() {
		return bands, &InvalidVariantError{Variant: int(variant)}
	}

	width := int(variant) / models.CardSize
	for c := 0; c < models.CardSize; c++ {
		start := c*width + 1
		end := start + width - 1
		if c == models.CardSize-1 {
			end = int(variant)
		}
		bands[c] = Band{Min: start, Max: end}
	}
	return bands, nil
}

// CardGenerator produces bingo cards. Safe for concurrent use.
type CardGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewCardGenerator creates a generator drawing from rng. A nil rng is seeded from crypto/rand.
func NewCardGenerator(rng *rand.Rand) *CardGenerator {
	if rng == nil {
		rng = NewSeededRand()
	}
	return &CardGenerator{rng: rng}
}

// Generate returns a new card for variant.
func (g *CardGenerator) Generate(variant models.Variant) (models.Card, error) {
	var card models.Card

	bands, err := Bands(variant)
	if err != nil {
		return card, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for col, band := range bands {
		column := g.drawColumn(band)
		for row, n := range column {
			card[row][col] = n
		}
	}
	card[models.FreeRow][models.FreeCol] = models.FreeCell

	return card, nil
}

// drawColumn picks CardSize distinct numbers from band, sorted ascending.
func (g *CardGenerator) drawColumn(band Band) []int {
	seen := make(map[int]struct{}, models.CardSize)
	column := make([]int, 0, models.CardSize)
	span := band.Max - band.Min + 1

	for len(column) < models.CardSize {
		n := band.Min + g.rng.IntN(span)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		column = append(column, n)
	}

	slices.Sort(column)
	return column
}
