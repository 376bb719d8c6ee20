package utils

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// cardNumberLength is the length of a generated debit card number.
const cardNumberLength = 16

// randomDigits generates n random decimal digits
func randomDigits(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random digits: %w", err)
	}

	var builder strings.Builder
	for _, b := range buf {
		builder.WriteByte(b%10 + '0')
	}
	return builder.String(), nil
}

// GenerateCardNumber generates a random 16-digit card number
func GenerateCardNumber() (string, error) {
	number, err := randomDigits(cardNumberLength)
	if err != nil {
		return "", err
	}
	return number, nil
}
