// Package config resolves git-stack configuration: the repository
// configuration file, the mapping file location, and the local identity
// used for branch naming.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"gitstack.dev/gitstack/internal/utils"
)

const (
	// EnvMappingFile overrides the mapping file location
	EnvMappingFile = "GIT_STACK_MAPPING_FILE"

	// EnvUser overrides the identity used for branch naming
	EnvUser = "GIT_STACK_USER"

	mappingFileName = "git-stack-mapping.json"
	configFileName  = ".gitstack_config"
)

// RepoConfig is the per-repository configuration stored in the git dir
type RepoConfig struct {
	BaseBranch *string `json:"baseBranch,omitempty"`
	User       *string `json:"user,omitempty"`
}

// GetRepoConfig reads the repository configuration. A missing file
// returns the default configuration.
func GetRepoConfig(gitDir string) (*RepoConfig, error) {
	data, err := os.ReadFile(filepath.Join(gitDir, configFileName))
	if err != nil {
		return &RepoConfig{}, nil
	}

	var cfg RepoConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BaseBranch returns the configured default base branch, or "main".
func BaseBranch(gitDir string) string {
	cfg, err := GetRepoConfig(gitDir)
	if err == nil && cfg.BaseBranch != nil && *cfg.BaseBranch != "" {
		return *cfg.BaseBranch
	}
	return "main"
}

// MappingPath resolves the mapping file location: the explicit env
// override wins, then the repository's git dir, then a user-home
// fallback for use outside a repository.
func MappingPath(gitDir string) string {
	if p := os.Getenv(EnvMappingFile); p != "" {
		return p
	}
	if gitDir != "" {
		return filepath.Join(gitDir, mappingFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", mappingFileName)
}

// ResolveIdentity resolves the identity used in branch names. Tries the
// env override, then the repo config, then the supplied git user name,
// then $USER. The result is always sanitized for branch naming.
func ResolveIdentity(gitDir, gitUserName string) string {
	if u := os.Getenv(EnvUser); u != "" {
		return utils.SanitizeIdentity(u)
	}
	if cfg, err := GetRepoConfig(gitDir); err == nil && cfg.User != nil && *cfg.User != "" {
		return utils.SanitizeIdentity(*cfg.User)
	}
	if gitUserName != "" {
		return utils.SanitizeIdentity(gitUserName)
	}
	if u := os.Getenv("USER"); u != "" {
		return utils.SanitizeIdentity(u)
	}
	return "user"
}
