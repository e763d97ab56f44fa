package utils_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"gitstack.dev/gitstack/internal/utils"
)

func TestSanitizeIdentity(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already clean", "alice", "alice"},
		{"mixed case", "Alice Smith", "alice-smith"},
		{"underscores", "alice_smith", "alice-smith"},
		{"invalid characters", "alice.smith@example", "alicesmithexample"},
		{"hyphen runs collapsed", "a--b---c", "a-b-c"},
		{"trimmed hyphens", "-alice-", "alice"},
		{"nothing left", "!!!", "user"},
		{"empty", "", "user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, utils.SanitizeIdentity(tt.in))
		})
	}
}

func TestTruncateTitle(t *testing.T) {
	require.Equal(t, "short", utils.TruncateTitle("short", 255))

	long := strings.Repeat("x", 300)
	got := utils.TruncateTitle(long, 255)
	require.Len(t, got, 255)
	require.True(t, strings.HasSuffix(got, "..."))
}

func TestTruncateTitleCountsCharactersNotBytes(t *testing.T) {
	// 200 two-byte characters stay within a 255-character limit
	wide := strings.Repeat("é", 200)
	require.Equal(t, wide, utils.TruncateTitle(wide, 255))

	// Cutting never splits a rune mid-sequence
	got := utils.TruncateTitle(strings.Repeat("é", 300), 255)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, 255, utf8.RuneCountInString(got))
	require.True(t, strings.HasSuffix(got, "..."))
}
