// Package utils provides small helpers shared across git-stack.
package utils

import (
	"regexp"
	"strings"
)

var (
	// identityReplaceRegex matches runs of whitespace and underscores
	identityReplaceRegex = regexp.MustCompile(`[\s_]+`)

	// identityStripRegex matches characters not valid in branch prefixes
	identityStripRegex = regexp.MustCompile(`[^a-z0-9-]`)

	hyphenRunRegex = regexp.MustCompile(`-+`)
)

// SanitizeIdentity normalizes a username for use as a branch name prefix:
// lowercase alphanumerics and hyphens only, no leading/trailing hyphens.
// Falls back to "user" when nothing survives.
func SanitizeIdentity(name string) string {
	name = strings.ToLower(name)
	name = identityReplaceRegex.ReplaceAllString(name, "-")
	name = identityStripRegex.ReplaceAllString(name, "")
	name = hyphenRunRegex.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")

	if name == "" {
		return "user"
	}
	return name
}

// TruncateTitle shortens a review title to fit hosting-service limits
// (255 characters on GitLab), adding an ellipsis when cut. The limit
// counts characters, not bytes, so multi-byte titles are never split
// mid-rune.
func TruncateTitle(title string, maxLen int) string {
	runes := []rune(title)
	if len(runes) <= maxLen {
		return title
	}
	return string(runes[:maxLen-3]) + "..."
}
