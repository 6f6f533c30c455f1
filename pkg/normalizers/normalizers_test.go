package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVin(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase vin", input: "1hgbh41jxmn109186", expected: "1HGBH41JXMN109186"},
		{name: "already normalized", input: "1HGBH41JXMN109186", expected: "1HGBH41JXMN109186"},
		{name: "strips separators", input: "1HG-BH41 JXMN109186", expected: "1HGBH41JXMN109186"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeVin(tt.input))
		})
	}
}

func TestNormalizeMakeModel(t *testing.T) {
	assert.Equal(t, "honda civic", NormalizeMakeModel("  Honda   Civic "))
	assert.Equal(t, "honda civic", NormalizeMakeModel("HONDA CIVIC"))
	assert.Equal(t, "", NormalizeMakeModel("   "))
}

func TestApplyChain(t *testing.T) {
	result := ApplyChain("  ABC 123  ", "trim", "lowercase", "remove_whitespace")
	assert.Equal(t, "abc123", result)
}

func TestApplyUnknownNormalizer(t *testing.T) {
	assert.Equal(t, "value", Apply("value", "does_not_exist"))
}

func TestRegisterCustom(t *testing.T) {
	Register("reverse_test", func(s string) string {
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes)
	})

	fn, ok := Get("reverse_test")
	assert.True(t, ok)
	assert.Equal(t, "cba", fn("abc"))
}
