package numtext

import (
	"math"
	"testing"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"", 0},
		{"abc", 0},
		{"$ 1.234.567,89", 1234567.89},
		{"-50,25", -50.25},
		{"939,50", 939.5},
		{"1000", 1000},
		{"0,00", 0},
		{"12.5", 12.5},
		{"  7 ", 7},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseNumber(tt.input)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"retención", "RETENCION"},
		{"Comisión Año", "COMISION ANO"},
		{"IVA crédito", "IVA CREDITO"},
		{"ya upper", "YA UPPER"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{1.006, 1.01},
		{1.004, 1.0},
		{0.004, 0},
		{-0.0049, 0},
		{-10.505, -10.51},
		{939.499999, 939.5},
	}

	for _, tt := range tests {
		if got := Round2(tt.input); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Round2(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(-0.0001); got != "0.00" {
		t.Errorf("FormatAmount near-zero = %q, want 0.00", got)
	}
	if got := FormatAmount(1000); got != "1000.00" {
		t.Errorf("FormatAmount(1000) = %q", got)
	}
	if got := FormatAmount(-939.5); got != "-939.50" {
		t.Errorf("FormatAmount(-939.5) = %q", got)
	}
}
