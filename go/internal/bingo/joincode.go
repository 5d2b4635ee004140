package bingo

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	codeMin = 10_000_000
	codeMax = 99_999_999
)

// RandSource allows injecting randomness for deterministic tests
type RandSource interface {
	IntN(n int) int
}

// CodeGenerator produces 8-digit numeric join codes.
type CodeGenerator struct {
	randSource RandSource
}

// NewCodeGenerator creates a generator. A nil source uses crypto/rand.
func NewCodeGenerator(randSource RandSource) *CodeGenerator {
	return &CodeGenerator{randSource: randSource}
}

// Generate returns a code uniform in [10000000, 99999999].
func (g *CodeGenerator) Generate() string {
	span := codeMax - codeMin + 1
	var n int
	if g.randSource != nil {
		n = g.randSource.IntN(span)
	} else {
		v, err := rand.Int(rand.Reader, big.NewInt(int64(span)))
		if err != nil {
			panic("failed to generate join code: " + err.Error())
		}
		n = int(v.Int64())
	}
	return strconv.Itoa(codeMin + n)
}

// ValidCode reports whether s has the join code shape.
func ValidCode(s string) bool {
	if len(s) != 8 {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= codeMin && n <= codeMax
}
