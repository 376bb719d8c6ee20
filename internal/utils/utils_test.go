package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIBAN(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		iban, err := GenerateIBAN()
		require.NoError(t, err)
		assert.Len(t, iban, 22)
		assert.True(t, ValidIBAN(iban), "generated IBAN %q must be valid", iban)
		assert.False(t, seen[iban], "generated IBAN %q repeated", iban)
		seen[iban] = true
	}
}

func TestNormalizeIBAN(t *testing.T) {
	assert.Equal(t, "AL12345678901234567890", NormalizeIBAN("al12 3456 7890 1234 5678 90"))
}

func TestValidIBAN(t *testing.T) {
	assert.True(t, ValidIBAN("AL12345678901234567890"))
	assert.True(t, ValidIBAN("DE89370400440532013000"))

	for _, iban := range []string{"", "AL12", "12AL5678901234", "al12345678901234567890"} {
		assert.False(t, ValidIBAN(iban), "IBAN %q should be invalid", iban)
	}
}

func TestGenerateCardNumber(t *testing.T) {
	number, err := GenerateCardNumber()
	require.NoError(t, err)
	assert.Len(t, number, 16)
	for _, r := range number {
		assert.True(t, r >= '0' && r <= '9')
	}
}
