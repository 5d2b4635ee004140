package bingo

import "github.com/mcdev12/bingo/go/internal/models"

// DrawnSet is a lookup of drawn numbers.
type DrawnSet map[int]struct{}

// NewDrawnSet builds a DrawnSet from a draw sequence.
func NewDrawnSet(drawn []int) DrawnSet {
	set := make(DrawnSet, len(drawn))
	for _, n := range drawn {
		set[n] = struct{}{}
	}
	return set
}

// marked reports whether a cell counts as marked. The free cell always does.
func (s DrawnSet) marked(n int) bool {
	if n == models.FreeCell {
		return true
	}
	_, ok := s[n]
	return ok
}

// CheckWin reports whether card satisfies condition given the drawn numbers.
func CheckWin(card models.Card, drawn []int, condition models.WinCondition) bool {
	return NewDrawnSet(drawn).CheckWin(card, condition)
}

// CheckWin is CheckWin against a prebuilt set, for evaluating many cards per draw.
func (s DrawnSet) CheckWin(card models.Card, condition models.WinCondition) bool {
	switch condition {
	case models.WinConditionLine:
		for row := 0; row < models.CardSize; row++ {
			if s.rowMarked(card, row) == models.CardSize {
				return true
			}
		}
		return false
	case models.WinConditionColumn:
		for col := 0; col < models.CardSize; col++ {
			if s.columnMarked(card, col) == models.CardSize {
				return true
			}
		}
		return false
	case models.WinConditionFull:
		for row := 0; row < models.CardSize; row++ {
			if s.rowMarked(card, row) != models.CardSize {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Progress reports marked cells and the best row and column counts of card.
func Progress(card models.Card, drawn []int) models.Progress {
	return NewDrawnSet(drawn).Progress(card)
}

func (s DrawnSet) Progress(card models.Card) models.Progress {
	var p models.Progress
	for i := 0; i < models.CardSize; i++ {
		r := s.rowMarked(card, i)
		p.Marked += r
		p.BestRow = max(p.BestRow, r)
		p.BestColumn = max(p.BestColumn, s.columnMarked(card, i))
	}
	return p
}

func (s DrawnSet) rowMarked(card models.Card, row int) int {
	n := 0
	for col := 0; col < models.CardSize; col++ {
		if s.marked(card[row][col]) {
			n++
		}
	}
	return n
}

func (s DrawnSet) columnMarked(card models.Card, col int) int {
	n := 0
	for row := 0; row < models.CardSize; row++ {
		if s.marked(card[row][col]) {
			n++
		}
	}
	return n
}
