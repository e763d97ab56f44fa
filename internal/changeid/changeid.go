// Package changeid handles the stable identifiers embedded in commit
// messages. A change id survives amends and rebases and is what ties a
// commit to its review request.
//
// Current format: uuid@stackname@position (e.g. "a1b2c3d4@my-feature@1").
// The @ delimiter is not allowed in stack names, so parsing is
// unambiguous. The old hyphen-delimited format (uuid-stackname-N) is
// still parsed for backward compatibility but never generated.
package changeid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Delimiter separates the components of a change id
const Delimiter = "@"

// Trailer is the commit message label carrying the change id
const Trailer = "Change-Id:"

var (
	// currentPattern matches the current format: uuid@stackname@position
	currentPattern = regexp.MustCompile(`(?i)Change-Id:\s+([a-f0-9]+)@([a-z0-9-]+)@(\d+)`)

	// legacyPattern matches the old format: uuid-stackname-N. It is
	// ambiguous when stack names contain hyphens; parsing is best effort.
	legacyPattern = regexp.MustCompile(`(?i)Change-Id:\s+([a-z0-9-]+)`)

	stackNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
)

// Generate produces a fresh change id for a stack position.
func Generate(stackName string, position int) string {
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%s%s%s%d", prefix, Delimiter, stackName, Delimiter, position)
}

// Extract scans a commit message for an embedded change id. It tries the
// current format first, then falls back to the legacy format. Returns
// ("", false) when no id is present.
func Extract(message string) (string, bool) {
	if message == "" {
		return "", false
	}

	if m := currentPattern.FindStringSubmatch(message); m != nil {
		return m[1] + Delimiter + m[2] + Delimiter + m[3], true
	}

	if m := legacyPattern.FindStringSubmatch(message); m != nil {
		return m[1], true
	}

	return "", false
}

// StackName parses the stack name out of a change id. Returns ("", false)
// for malformed ids; callers treat that as "not part of a stack".
func StackName(id string) (string, bool) {
	if id == "" {
		return "", false
	}

	if strings.Contains(id, Delimiter) {
		parts := strings.Split(id, Delimiter)
		if len(parts) == 3 {
			return parts[1], true
		}
		return "", false
	}

	// Legacy format: everything between the uuid part and the trailing
	// position. Fragile when the stack name contains hyphens.
	parts := strings.Split(id, "-")
	if len(parts) >= 3 {
		return strings.Join(parts[1:len(parts)-1], "-"), true
	}

	return "", false
}

// Position parses the 1-indexed stack position out of a change id.
func Position(id string) (int, bool) {
	if id == "" {
		return 0, false
	}

	if strings.Contains(id, Delimiter) {
		parts := strings.Split(id, Delimiter)
		if len(parts) != 3 {
			return 0, false
		}
		pos, err := strconv.Atoi(parts[2])
		if err != nil {
			return 0, false
		}
		return pos, true
	}

	parts := strings.Split(id, "-")
	pos, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, false
	}
	return pos, true
}

// AppendToMessage appends a Change-Id trailer to a commit message,
// separated from the body by a blank line. Messages that already carry an
// id are returned unchanged.
func AppendToMessage(message, id string) string {
	if _, ok := Extract(message); ok {
		return message
	}

	if message != "" && !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	if message != "" && !strings.HasSuffix(message, "\n\n") {
		message += "\n"
	}

	return message + Trailer + " " + id
}

// StripFromMessage removes all Change-Id trailer lines from a commit message.
func StripFromMessage(message string) string {
	lines := strings.Split(message, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "change-id:") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimRight(strings.Join(kept, "\n"), "\n") + "\n"
}

// BranchName formats the review branch name for a change id.
func BranchName(user, id string) string {
	return fmt.Sprintf("%s/stack-%s", user, id)
}

// ValidateStackName reports whether a human-supplied stack name is
// acceptable: lowercase letters, digits and hyphens, no leading or
// trailing hyphen, no delimiter character.
func ValidateStackName(name string) bool {
	if name == "" || strings.Contains(name, Delimiter) {
		return false
	}
	return stackNamePattern.MatchString(name)
}
