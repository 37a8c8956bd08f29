package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected float64
		ok       bool
	}{
		{name: "plain float", input: 12.5, expected: 12.5, ok: true},
		{name: "plain int", input: 42, expected: 42, ok: true},
		{name: "currency with separators", input: "$1,234.56", expected: 1234.56, ok: true},
		{name: "percent sign", input: "12.5%", expected: 12.5, ok: true},
		{name: "surrounding whitespace", input: "  2716940 ", expected: 2716940, ok: true},
		{name: "negative currency", input: "-$500", expected: -500, ok: true},
		{name: "exponent notation", input: "1.2e3", expected: 1200, ok: true},
		{name: "population with commas", input: "2,716,940", expected: 2716940, ok: true},
		{name: "nil", input: nil, ok: false},
		{name: "letters only", input: "abc", ok: false},
		{name: "empty string", input: "", ok: false},
		{name: "lone dash", input: "-", ok: false},
		{name: "NaN", input: math.NaN(), ok: false},
		{name: "infinity", input: math.Inf(1), ok: false},
		{name: "boolean", input: true, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.expected, got, 1e-9)
			}
		})
	}
}
