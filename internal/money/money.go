package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a fixed-precision monetary value with two decimal places.
// The zero value is 0.00.
type Amount struct {
	dec decimal.Decimal
}

// maxDigits is the total precision of a stored amount (numeric(15,2)).
const maxDigits = 15

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

// FromDecimal builds an Amount from a decimal, rounding to two places.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount{dec: d.Round(2)}
}

// Parse parses a decimal string (e.g. "250.00") into an Amount.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Exponent() < -2 {
		return Amount{}, fmt.Errorf("invalid amount %q: more than two decimal places", s)
	}
	if len(d.Truncate(0).Abs().String()) > maxDigits-2 {
		return Amount{}, fmt.Errorf("invalid amount %q: exceeds %d digits", s, maxDigits)
	}
	return Amount{dec: d.Round(2)}, nil
}

// MustParse is Parse for constants known to be valid. It panics on error.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{dec: a.dec.Add(b.dec)}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{dec: a.dec.Sub(b.dec)}
}

// Cmp compares two amounts: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int {
	return a.dec.Cmp(b.dec)
}

// Equal reports whether the two amounts are numerically equal.
func (a Amount) Equal(b Amount) bool {
	return a.dec.Equal(b.dec)
}

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool {
	return a.dec.LessThan(b.dec)
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a.dec.IsPositive()
}

// IsNegative reports whether the amount is strictly less than zero.
func (a Amount) IsNegative() bool {
	return a.dec.IsNegative()
}

// String renders the amount with exactly two decimal places.
func (a Amount) String() string {
	return a.dec.StringFixed(2)
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.dec
}

// MarshalJSON renders the amount as a JSON string with two decimal places.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer for database storage.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(value interface{}) error {
	if value == nil {
		*a = Amount{}
		return nil
	}
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("failed to scan amount: %w", err)
	}
	*a = Amount{dec: d.Round(2)}
	return nil
}
