package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const DefaultCodeLength = 6

var ten = big.NewInt(10)

// GenerateCode produces a numeric one-time code of the given length using
// crypto/rand. Each digit is drawn independently so leading zeros are as
// likely as any other digit.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}

	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate code digit: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
