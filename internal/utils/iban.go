package utils

import (
	"regexp"
	"strings"
)

// ibanCountryPrefix is the country code used for issued accounts.
const ibanCountryPrefix = "AL"

var ibanPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{4,30}$`)

// GenerateIBAN generates a new external account identifier: the
// country prefix followed by 20 random digits.
func GenerateIBAN() (string, error) {
	digits, err := randomDigits(20)
	if err != nil {
		return "", err
	}
	return ibanCountryPrefix + digits, nil
}

// NormalizeIBAN strips spaces and uppercases an IBAN supplied by a
// caller.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
}

// ValidIBAN reports whether a normalized IBAN is well-formed.
func ValidIBAN(iban string) bool {
	return ibanPattern.MatchString(iban)
}
