package bingo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bingo/go/internal/models"
)

func testCard(t *testing.T) models.Card {
	t.Helper()
	card, err := NewCardGenerator(NewRand(99)).Generate(models.Variant75)
	require.NoError(t, err)
	return card
}

func cardNumbers(card models.Card) []int {
	var out []int
	for row := 0; row < models.CardSize; row++ {
		for col := 0; col < models.CardSize; col++ {
			if card[row][col] != models.FreeCell {
				out = append(out, card[row][col])
			}
		}
	}
	return out
}

func TestCheckWinFull(t *testing.T) {
	card := testCard(t)
	all := cardNumbers(card)
	require.Len(t, all, 24)

	assert.True(t, CheckWin(card, all, models.WinConditionFull))

	for i := range all {
		missing := append(append([]int{}, all[:i]...), all[i+1:]...)
		assert.False(t, CheckWin(card, missing, models.WinConditionFull), "card won without %d", all[i])
	}
}

func TestCheckWinLine(t *testing.T) {
	card := testCard(t)

	// Row 0 complete plus one cell from each other row.
	drawn := card[0][:]
	drawn = append([]int{}, drawn...)
	for row := 1; row < models.CardSize; row++ {
		drawn = append(drawn, card[row][0])
	}
	assert.True(t, CheckWin(card, drawn, models.WinConditionLine))

	// Every row missing its last cell.
	var partial []int
	for row := 0; row < models.CardSize; row++ {
		partial = append(partial, card[row][:models.CardSize-1]...)
	}
	assert.False(t, CheckWin(card, partial, models.WinConditionLine))
}

func TestCheckWinLineThroughFreeCell(t *testing.T) {
	card := testCard(t)

	var drawn []int
	for col := 0; col < models.CardSize; col++ {
		if col != models.FreeCol {
			drawn = append(drawn, card[models.FreeRow][col])
		}
	}

	assert.True(t, CheckWin(card, drawn, models.WinConditionLine))
	assert.False(t, CheckWin(card, drawn, models.WinConditionColumn))
}

func TestCheckWinColumn(t *testing.T) {
	card := testCard(t)

	column := card.Column(models.FreeCol)
	var drawn []int
	for _, n := range column {
		if n != models.FreeCell {
			drawn = append(drawn, n)
		}
	}

	assert.True(t, CheckWin(card, drawn, models.WinConditionColumn))
	assert.False(t, CheckWin(card, drawn[:len(drawn)-1], models.WinConditionColumn))
}

func TestCheckWinNothingDrawn(t *testing.T) {
	card := testCard(t)
	for _, cond := range []models.WinCondition{models.WinConditionLine, models.WinConditionColumn, models.WinConditionFull} {
		assert.False(t, CheckWin(card, nil, cond), string(cond))
	}
	assert.False(t, CheckWin(card, cardNumbers(card), models.WinCondition("diagonal")))
}

func TestProgress(t *testing.T) {
	card := testCard(t)

	p := Progress(card, nil)
	assert.Equal(t, models.Progress{Marked: 1, BestRow: 1, BestColumn: 1}, p)

	p = Progress(card, card[0][:])
	assert.Equal(t, 6, p.Marked)
	assert.Equal(t, 5, p.BestRow)
	assert.Equal(t, 2, p.BestColumn)
}
