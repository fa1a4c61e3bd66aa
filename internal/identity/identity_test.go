package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase passthrough", "alice", "alice"},
		{"case folded", "Alice", "alice"},
		{"trimmed", "  alice \n", "alice"},
		{"unicode nfc", "José", "josé"}, // e + combining acute -> é
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("Alice", "alice"))
	assert.True(t, Equal("ALICE", " alice"))
	assert.False(t, Equal("alice", "bob"))

	// Two empty identities are equal but neither is Known.
	assert.True(t, Equal("", "  "))
	assert.False(t, Known("  "))
	assert.True(t, Known("carol"))
}
