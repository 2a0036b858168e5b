package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const defaultOTPLength = 6

var digitRange = big.NewInt(10)

// GenerateCode returns length decimal digits, leading zeros kept. Each digit is drawn
// independently from crypto/rand.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = defaultOTPLength
	}
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, digitRange)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}
