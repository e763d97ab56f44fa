package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gitstack.dev/gitstack/internal/config"
)

func TestGetRepoConfig(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := config.GetRepoConfig(t.TempDir())
		require.NoError(t, err)
		require.Nil(t, cfg.BaseBranch)
	})

	t.Run("reads configured base branch", func(t *testing.T) {
		gitDir := t.TempDir()
		require.NoError(t, os.WriteFile(
			filepath.Join(gitDir, ".gitstack_config"),
			[]byte(`{"baseBranch": "develop"}`), 0o644))

		require.Equal(t, "develop", config.BaseBranch(gitDir))
	})

	t.Run("defaults to main", func(t *testing.T) {
		require.Equal(t, "main", config.BaseBranch(t.TempDir()))
	})
}

func TestMappingPath(t *testing.T) {
	t.Run("env override wins", func(t *testing.T) {
		t.Setenv(config.EnvMappingFile, "/tmp/custom-mapping.json")
		require.Equal(t, "/tmp/custom-mapping.json", config.MappingPath("/repo/.git"))
	})

	t.Run("git dir default", func(t *testing.T) {
		t.Setenv(config.EnvMappingFile, "")
		require.Equal(t,
			filepath.Join("/repo/.git", "git-stack-mapping.json"),
			config.MappingPath("/repo/.git"))
	})

	t.Run("home fallback outside a repository", func(t *testing.T) {
		t.Setenv(config.EnvMappingFile, "")
		got := config.MappingPath("")
		require.Contains(t, got, filepath.Join(".config", "git-stack-mapping.json"))
	})
}

func TestResolveIdentity(t *testing.T) {
	t.Run("env override wins and is sanitized", func(t *testing.T) {
		t.Setenv(config.EnvUser, "Alice Smith")
		require.Equal(t, "alice-smith", config.ResolveIdentity(t.TempDir(), "bob"))
	})

	t.Run("repo config beats git user name", func(t *testing.T) {
		t.Setenv(config.EnvUser, "")
		gitDir := t.TempDir()
		require.NoError(t, os.WriteFile(
			filepath.Join(gitDir, ".gitstack_config"),
			[]byte(`{"user": "carol"}`), 0o644))

		require.Equal(t, "carol", config.ResolveIdentity(gitDir, "bob"))
	})

	t.Run("git user name", func(t *testing.T) {
		t.Setenv(config.EnvUser, "")
		require.Equal(t, "bob-jones", config.ResolveIdentity(t.TempDir(), "Bob Jones"))
	})

	t.Run("USER fallback", func(t *testing.T) {
		t.Setenv(config.EnvUser, "")
		t.Setenv("USER", "dave")
		require.Equal(t, "dave", config.ResolveIdentity(t.TempDir(), ""))
	})
}
