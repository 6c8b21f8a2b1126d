// Package numtext holds the locale-tolerant number parsing and the
// accent-insensitive text normalization every other component relies on.
// Statement text mixes "1.234,56" and "1,234.56" shapes freely, so parsing
// is best-effort and never fails: anything unparsable is worth exactly 0.
package numtext

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ParseNumber converts a raw amount string to a float64. It keeps digits,
// comma, dot and minus, then decides the decimal separator by whichever of
// comma/dot appears rightmost. Unparsable input yields 0.
func ParseNumber(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	s = b.String()
	if s == "" {
		return 0
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			// dot is decimal, commas are thousands
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		}
	case hasComma:
		s = strings.ReplaceAll(s, ",", ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Normalize decomposes s, strips combining marks and upper-cases the rest.
// All keyword matching against statement text goes through this.
func Normalize(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// Round2 rounds to two decimals. Values inside the half-cent band snap to
// exactly zero so signed output lines never show "-0.00".
func Round2(x float64) float64 {
	r := math.Round(x*100) / 100
	if math.Abs(r) < 0.005 {
		return 0
	}
	return r
}

// FormatAmount renders an amount with the fixed two decimals every output
// file uses.
func FormatAmount(x float64) string {
	return strconv.FormatFloat(Round2(x), 'f', 2, 64)
}
