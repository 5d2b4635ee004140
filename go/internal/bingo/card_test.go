package bingo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bingo/go/internal/models"
)

func TestBands(t *testing.T) {
	bands, err := Bands(models.Variant75)
	require.NoError(t, err)
	assert.Equal(t, Band{Min: 1, Max: 15}, bands[0])
	assert.Equal(t, Band{Min: 31, Max: 45}, bands[2])
	assert.Equal(t, Band{Min: 61, Max: 75}, bands[4])

	bands, err = Bands(models.Variant90)
	require.NoError(t, err)
	assert.Equal(t, Band{Min: 1, Max: 18}, bands[0])
	assert.Equal(t, Band{Min: 73, Max: 90}, bands[4])
}

func TestGenerateCards(t *testing.T) {
	for _, variant := range []models.Variant{models.Variant75, models.Variant90} {
		t.Run(fmt.Sprintf("variant_%d", variant), func(t *testing.T) {
			gen := NewCardGenerator(NewRand(int64(variant)))
			bands, err := Bands(variant)
			require.NoError(t, err)

			for i := 0; i < 1000; i++ {
				card, err := gen.Generate(variant)
				require.NoError(t, err)

				assert.Equal(t, models.FreeCell, card[models.FreeRow][models.FreeCol], "centre cell must be free")

				for col := 0; col < models.CardSize; col++ {
					seen := map[int]bool{}
					prev := 0
					for row := 0; row < models.CardSize; row++ {
						n := card[row][col]
						if row == models.FreeRow && col == models.FreeCol {
							continue
						}
						require.GreaterOrEqual(t, n, 1)
						require.LessOrEqual(t, n, int(variant))
						require.GreaterOrEqual(t, n, bands[col].Min, "column %d out of band", col)
						require.LessOrEqual(t, n, bands[col].Max, "column %d out of band", col)
						require.False(t, seen[n], "duplicate %d in column %d", n, col)
						require.Greater(t, n, prev, "column %d not ascending", col)
						seen[n] = true
						prev = n
					}
				}
			}
		})
	}
}

func TestGenerateInvalidVariant(t *testing.T) {
	gen := NewCardGenerator(NewRand(1))

	_, err := gen.Generate(models.Variant(80))
	require.Error(t, err)

	var invalid *InvalidVariantError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 80, invalid.Variant)
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := NewCardGenerator(NewRand(42)).Generate(models.Variant75)
	require.NoError(t, err)
	b, err := NewCardGenerator(NewRand(42)).Generate(models.Variant75)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
