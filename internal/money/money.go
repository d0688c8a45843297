// Package money handles fixed-point amounts in minor units (paise, cents).
package money

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Parse extracts a positive amount from free-form user text. Everything
// except digits and the decimal dot is stripped before parsing, so inputs
// like "₹1,035.00" or "500 rs" are accepted.
func Parse(text string) (int64, error) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	amount, err := ParseDecimal(b.String())
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

// ParseDecimal converts a plain decimal string into minor units. At most two
// fractional digits are kept.
func ParseDecimal(s string) (int64, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	whole, frac, found := strings.Cut(s, ".")
	if strings.Contains(frac, ".") {
		return 0, ErrInvalidAmount
	}
	var amount int64
	for _, r := range whole {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
		amount = amount*10 + int64(r-'0')
	}
	if !found {
		return amount * 100, nil
	}
	if frac == "" && whole == "" {
		return 0, ErrInvalidAmount
	}
	cents := int64(0)
	for i, r := range frac {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
		if i < 2 {
			cents = cents*10 + int64(r-'0')
		}
	}
	if len(frac) == 1 {
		cents *= 10
	}
	return amount*100 + cents, nil
}

func FormatINR(amount int64) string {
	return "₹" + format(amount)
}

func FormatUSD(amount int64) string {
	return "$" + format(amount)
}

func format(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
