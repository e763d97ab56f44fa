package changeid_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gitstack.dev/gitstack/internal/changeid"
)

func TestGenerate(t *testing.T) {
	id := changeid.Generate("my-feature", 3)

	parts := strings.Split(id, "@")
	require.Len(t, parts, 3)
	require.Len(t, parts[0], 8)
	require.Equal(t, "my-feature", parts[1])
	require.Equal(t, "3", parts[2])

	// Random prefixes must not collide across calls
	other := changeid.Generate("my-feature", 3)
	require.NotEqual(t, id, other)
}

func TestExtract(t *testing.T) {
	t.Run("current format", func(t *testing.T) {
		msg := "Add parser\n\nSome body text.\n\nChange-Id: a1b2c3d4@my-feature@2"
		id, ok := changeid.Extract(msg)
		require.True(t, ok)
		require.Equal(t, "a1b2c3d4@my-feature@2", id)
	})

	t.Run("label is case insensitive", func(t *testing.T) {
		id, ok := changeid.Extract("subject\n\nchange-id: a1b2c3d4@feat@1")
		require.True(t, ok)
		require.Equal(t, "a1b2c3d4@feat@1", id)
	})

	t.Run("legacy format", func(t *testing.T) {
		id, ok := changeid.Extract("subject\n\nChange-Id: a1b2c3d4-feature-1")
		require.True(t, ok)
		require.Equal(t, "a1b2c3d4-feature-1", id)
	})

	t.Run("absent", func(t *testing.T) {
		_, ok := changeid.Extract("just a subject")
		require.False(t, ok)
	})

	t.Run("empty message", func(t *testing.T) {
		_, ok := changeid.Extract("")
		require.False(t, ok)
	})
}

func TestStackName(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
		ok   bool
	}{
		{"current format", "a1b2c3d4@my-feature@1", "my-feature", true},
		{"current format with hyphens", "a1b2c3d4@a-b-c@12", "a-b-c", true},
		{"legacy format", "a1b2c3d4-feature-1", "feature", true},
		{"legacy format hyphenated name", "a1b2c3d4-my-feature-2", "my-feature", true},
		{"malformed current", "a@b", "", false},
		{"too few legacy parts", "abcd", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := changeid.StackName(tt.id)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPosition(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want int
		ok   bool
	}{
		{"current format", "a1b2c3d4@feat@7", 7, true},
		{"legacy format", "a1b2c3d4-feature-3", 3, true},
		{"malformed current", "a@feat", 0, false},
		{"legacy without number", "a1b2c3d4-feature", 0, false},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := changeid.Position(tt.id)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAppendToMessage(t *testing.T) {
	t.Run("appends after blank line", func(t *testing.T) {
		got := changeid.AppendToMessage("Add parser\n\nBody.", "a1b2c3d4@feat@1")
		require.Equal(t, "Add parser\n\nBody.\n\nChange-Id: a1b2c3d4@feat@1", got)
	})

	t.Run("subject only", func(t *testing.T) {
		got := changeid.AppendToMessage("Add parser", "a1b2c3d4@feat@1")
		require.Equal(t, "Add parser\n\nChange-Id: a1b2c3d4@feat@1", got)
	})

	t.Run("never duplicates", func(t *testing.T) {
		msg := "Add parser\n\nChange-Id: a1b2c3d4@feat@1"
		got := changeid.AppendToMessage(msg, "ffffffff@feat@2")
		require.Equal(t, msg, got)
	})
}

func TestStripFromMessage(t *testing.T) {
	msg := "Add parser\n\nBody.\n\nChange-Id: a1b2c3d4@feat@1"
	got := changeid.StripFromMessage(msg)
	require.Equal(t, "Add parser\n\nBody.\n", got)

	_, ok := changeid.Extract(got)
	require.False(t, ok)
}

func TestBranchName(t *testing.T) {
	require.Equal(t, "alice/stack-a1b2c3d4@feat@1",
		changeid.BranchName("alice", "a1b2c3d4@feat@1"))
}

func TestValidateStackName(t *testing.T) {
	valid := []string{"feature", "bugfix-123", "a", "a-b-c", "x9"}
	for _, name := range valid {
		require.True(t, changeid.ValidateStackName(name), name)
	}

	invalid := []string{"", "Feature", "-feature", "feature-", "my@stack", "my stack", "UPPER"}
	for _, name := range invalid {
		require.False(t, changeid.ValidateStackName(name), name)
	}
}
