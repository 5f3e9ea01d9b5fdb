package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldSet(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil", input: nil, expected: nil},
		{name: "only blanks", input: []string{"", "  "}, expected: []string{}},
		{name: "folds case and trims", input: []string{"  Casino ", "CRYPTO-exchange"}, expected: []string{"casino", "crypto-exchange"}},
		{name: "dedupes after folding", input: []string{"casino", "CASINO", " Casino", "shop"}, expected: []string{"casino", "shop"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FoldSet(tt.input))
		})
	}
}

func TestSetContains(t *testing.T) {
	s := NewSet("high-risk-merchant", "Casino")

	assert.True(t, s.Contains("casino"))
	assert.True(t, s.Contains(" HIGH-RISK-MERCHANT "))
	assert.False(t, s.Contains("grocer"))
	assert.False(t, s.Contains(""))
}
