package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "broker list", input: []string{" kafka-1:9092", "kafka-2:9092 "}, expected: []string{"kafka-1:9092", "kafka-2:9092"}},
		{name: "repeated broker", input: []string{"kafka-1:9092", " kafka-1:9092"}, expected: []string{"kafka-1:9092"}},
		{name: "empty entries from trailing comma", input: []string{"kafka-1:9092", "", "  "}, expected: []string{"kafka-1:9092"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "maría lópez", NormalizeName("  María   LÓPEZ "))
	assert.Equal(t, "", NormalizeName("   "))
	assert.True(t, SameName("Juan  Pérez", "juan pérez"))
	assert.False(t, SameName("Juan Pérez", "Juan Pérez Soto"))
}
