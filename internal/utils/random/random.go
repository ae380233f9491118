package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Int returns a uniformly random integer in [min, max].
func Int(min, max int64) (int64, error) {
	if min > max {
		return 0, fmt.Errorf("min cannot be greater than max")
	}
	if min == max {
		return min, nil
	}
	diff := big.NewInt(max - min + 1)
	n, err := rand.Int(rand.Reader, diff)
	if err != nil {
		return 0, fmt.Errorf("failed to generate random int: %w", err)
	}
	return n.Int64() + min, nil
}

// Digits returns a random string of decimal digits of the given length.
func Digits(length int) (string, error) {
	digits := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = byte(n.Int64() + '0')
	}
	return string(digits), nil
}
