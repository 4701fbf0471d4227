package mathutil

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Round up at midpoint", "1.235", "1.24"},
		{"Round down below midpoint", "1.234", "1.23"},
		{"No rounding needed", "1.23", "1.23"},
		{"Large number", "12345.678", "12345.68"},
		{"Negative number round up", "-1.235", "-1.24"},
		{"Negative number round down", "-1.234", "-1.23"},
		{"Zero", "0", "0"},
		{"Very small positive", "0.001", "0"},
		{"Nearly two cents", "0.019", "0.02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Round(d(tt.input))
			if !result.Equal(d(tt.expected)) {
				t.Errorf("Round(%s) = %s, expected %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsZero(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Exactly zero", "0", true},
		{"Very small positive", "0.001", true},
		{"Very small negative", "-0.001", true},
		{"Just above tolerance", "0.02", false},
		{"Exactly tolerance", "0.01", true},
		{"Exactly negative tolerance", "-0.01", true},
		{"Large negative", "-100", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsZero(d(tt.input)); result != tt.expected {
				t.Errorf("IsZero(%s) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSignHelpers(t *testing.T) {
	if !IsPositive(d("0.011")) {
		t.Error("IsPositive(0.011) should be true")
	}
	if IsPositive(d("0.01")) {
		t.Error("IsPositive(0.01) should be false")
	}
	if !IsNegative(d("-0.02")) {
		t.Error("IsNegative(-0.02) should be true")
	}
	if IsNegative(d("-0.005")) {
		t.Error("IsNegative(-0.005) should be false")
	}
	if !NonNegative(d("-5")).IsZero() {
		t.Error("NonNegative(-5) should clamp to zero")
	}
	if !Min(d("1"), d("2")).Equal(d("1")) || !Max(d("1"), d("2")).Equal(d("2")) {
		t.Error("Min/Max returned the wrong operand")
	}
	if !WithinTolerance(d("100.004"), d("100"), Tolerance) {
		t.Error("WithinTolerance should accept a sub-cent difference")
	}
}

func TestPowInt(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		exp      int
		expected string
	}{
		{"Zero exponent", "1.01", 0, "1"},
		{"Single period", "1.01", 1, "1.01"},
		{"Twelve periods", "1.01", 12, "1.12682503013197"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PowInt(d(tt.base), tt.exp)
			if !WithinTolerance(result, d(tt.expected), d("0.0000000001")) {
				t.Errorf("PowInt(%s, %d) = %s, expected %s", tt.base, tt.exp, result, tt.expected)
			}
		})
	}
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		weights  []string
		expected []string
	}{
		{
			name:     "Even split",
			amount:   "100",
			weights:  []string{"1", "1"},
			expected: []string{"50", "50"},
		},
		{
			name:     "Residual lands on last positive weight",
			amount:   "100",
			weights:  []string{"1", "1", "1"},
			expected: []string{"33.33", "33.33", "33.34"},
		},
		{
			name:     "Zero weight receives nothing",
			amount:   "90",
			weights:  []string{"2", "0", "1"},
			expected: []string{"60", "0", "30"},
		},
		{
			name:     "Residual skips trailing zero weight",
			amount:   "10",
			weights:  []string{"1", "2", "0"},
			expected: []string{"3.33", "6.67", "0"},
		},
		{
			name:     "No positive weights splits equally",
			amount:   "10",
			weights:  []string{"0", "-1"},
			expected: []string{"5", "5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights := make([]decimal.Decimal, len(tt.weights))
			for i, w := range tt.weights {
				weights[i] = d(w)
			}
			shares := Allocate(d(tt.amount), weights)
			sum := decimal.Zero
			for i, share := range shares {
				if !share.Equal(d(tt.expected[i])) {
					t.Errorf("share %d = %s, expected %s", i, share, tt.expected[i])
				}
				sum = sum.Add(share)
			}
			if !sum.Equal(d(tt.amount)) {
				t.Errorf("shares sum to %s, expected %s", sum, tt.amount)
			}
		})
	}
}
