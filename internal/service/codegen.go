package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeGenerator produces join codes.
type CodeGenerator interface {
	Generate() (string, error)
}

type randomCodeGenerator struct {
	length int
}

// NewCodeGenerator returns a generator of uppercase alphanumeric codes
// drawn from crypto/rand.
func NewCodeGenerator(length int) CodeGenerator {
	if length <= 0 {
		length = 6
	}
	return &randomCodeGenerator{length: length}
}

func (g *randomCodeGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, g.length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}
