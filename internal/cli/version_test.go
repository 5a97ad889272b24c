package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare", "2.1.0", "v2.1.0", true},
		{"prefixed line", "claude version 1.0.44 (stable)", "v1.0.44", true},
		{"prerelease", "0.9.1-beta.2", "v0.9.1-beta.2", true},
		{"no version", "usage: claude [flags]", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVersionOutput(tt.in)
			if !tt.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSupportsStreamJSON(t *testing.T) {
	assert.True(t, SupportsStreamJSON("claude", "v1.0.44"))
	assert.True(t, SupportsStreamJSON("claude", ""), "unknown version assumes current")
	assert.False(t, SupportsStreamJSON("claude", "v0.9.0"))
	assert.False(t, SupportsStreamJSON("gemini", "v9.9.9"))
}
