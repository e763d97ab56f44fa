// Package hosting abstracts the code-hosting service that manages review
// requests. Two production implementations exist (GitLab via the glab
// CLI, GitHub via the REST API) plus an in-memory fake for tests.
package hosting

import "context"

// State is the lifecycle state of a review request
type State string

// Review request states
const (
	StateOpen   State = "opened"
	StateClosed State = "closed"
	StateMerged State = "merged"
)

// Review describes a review request on the hosting service
type Review struct {
	ID           int
	URL          string
	Title        string
	SourceBranch string
	TargetBranch string
	State        State
}

// Note is a comment on a review request. System-generated comments are
// excluded from listings.
type Note struct {
	ID   int
	Body string
}

// Client is the capability set required from a hosting backend.
//
// SetDependencies returns errors.ErrDependenciesUnsupported when the
// backend lacks the feature; callers must treat that as a capability
// signal and degrade gracefully, not as a transient failure.
type Client interface {
	// CreateMR opens a review request for source targeting target
	CreateMR(ctx context.Context, source, target, title, description string) (*Review, error)

	// UpdateMR updates a review's title and, when targetBranch is
	// non-empty, its target branch
	UpdateMR(ctx context.Context, id int, title, targetBranch string) error

	// GetMRState returns the review's lifecycle state
	GetMRState(ctx context.Context, id int) (State, error)

	// CloseMR closes a review request
	CloseMR(ctx context.Context, id int) error

	// AddNote adds a comment and returns its id
	AddNote(ctx context.Context, id int, body string) (int, error)

	// UpdateNote replaces the body of an existing comment
	UpdateNote(ctx context.Context, id, noteID int, body string) error

	// ListNotes returns the review's comments, excluding system notes
	ListNotes(ctx context.Context, id int) ([]Note, error)

	// SetDependencies marks the given reviews as blocking this one
	SetDependencies(ctx context.Context, id int, blocking []int) error

	// FindByStackName returns all reviews whose source branch belongs
	// to the named stack
	FindByStackName(ctx context.Context, stackName string) ([]Review, error)

	// FindBySourceBranch returns the open review for a source branch,
	// or nil when none exists
	FindBySourceBranch(ctx context.Context, branch string) (*Review, error)
}
