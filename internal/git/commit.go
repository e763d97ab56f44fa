package git

import "strings"

// Commit is a single commit in the local stack, with its change id
// parsed out of the message when one is present.
type Commit struct {
	SHA      string
	ChangeID string
	Subject  string
	Message  string
}

// ShortSHA returns the abbreviated commit sha used in output.
func (c Commit) ShortSHA() string {
	if len(c.SHA) > 8 {
		return c.SHA[:8]
	}
	return c.SHA
}

func subjectOf(message string) string {
	subject, _, _ := strings.Cut(message, "\n")
	return strings.TrimSpace(subject)
}
