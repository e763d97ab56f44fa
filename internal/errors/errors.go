// Package errors provides sentinel errors and custom error types for git-stack.
// Use errors.Is() and errors.As() to check for specific error conditions.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// ErrNotInRepository indicates the current directory is not inside a git repository
	ErrNotInRepository = errors.New("not in a git repository")

	// ErrDirtyWorkingTree indicates the working tree has uncommitted changes
	ErrDirtyWorkingTree = errors.New("working tree has uncommitted changes")

	// ErrRewriteRolledBack indicates a history rewrite failed and the
	// repository was restored from the backup ref
	ErrRewriteRolledBack = errors.New("history rewrite failed, rolled back")

	// ErrRebaseConflict indicates a conflict while replaying downstream
	// commits; the user must resolve it manually
	ErrRebaseConflict = errors.New("rebase conflict")

	// ErrDependenciesUnsupported indicates the hosting backend does not
	// support review-request dependencies
	ErrDependenciesUnsupported = errors.New("review dependencies not supported")

	// ErrStackNotFound indicates no mapping entries match the requested stack
	ErrStackNotFound = errors.New("stack not found")
)

// DirtyWorkingTreeError carries the porcelain status of the offending changes
type DirtyWorkingTreeError struct {
	Status string
}

func (e *DirtyWorkingTreeError) Error() string {
	return fmt.Sprintf("working tree has uncommitted changes, commit or stash them first:\n%s", e.Status)
}

// Is returns true if the target error is ErrDirtyWorkingTree
func (e *DirtyWorkingTreeError) Is(target error) bool {
	return target == ErrDirtyWorkingTree
}

// NewDirtyWorkingTreeError creates a new DirtyWorkingTreeError
func NewDirtyWorkingTreeError(status string) *DirtyWorkingTreeError {
	return &DirtyWorkingTreeError{Status: status}
}

// RewriteError represents a failed history rewrite. When RolledBack is
// true the repository has been restored to its pre-run state.
type RewriteError struct {
	SHA        string
	Subject    string
	RolledBack bool
	Err        error
}

func (e *RewriteError) Error() string {
	msg := fmt.Sprintf("cherry-pick failed for commit %.8s: %s", e.SHA, e.Subject)
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	if e.RolledBack {
		msg += "\nrepository restored to its original state"
	}
	return msg
}

// Is returns true if the target error is ErrRewriteRolledBack
func (e *RewriteError) Is(target error) bool {
	return target == ErrRewriteRolledBack && e.RolledBack
}

func (e *RewriteError) Unwrap() error {
	return e.Err
}

// NewRewriteError creates a new RewriteError
func NewRewriteError(sha, subject string, rolledBack bool, err error) *RewriteError {
	return &RewriteError{SHA: sha, Subject: subject, RolledBack: rolledBack, Err: err}
}

// RebaseConflictError represents a conflict while cherry-picking a
// downstream branch. No rollback is performed; the user resolves it.
type RebaseConflictError struct {
	Branch string
	Err    error
}

func (e *RebaseConflictError) Error() string {
	return fmt.Sprintf("conflict while rebasing %s, resolve it and run:\n"+
		"    git cherry-pick --continue\n"+
		"    git-stack push\n"+
		"or abort with:\n"+
		"    git cherry-pick --abort", e.Branch)
}

// Is returns true if the target error is ErrRebaseConflict
func (e *RebaseConflictError) Is(target error) bool {
	return target == ErrRebaseConflict
}

func (e *RebaseConflictError) Unwrap() error {
	return e.Err
}

// NewRebaseConflictError creates a new RebaseConflictError
func NewRebaseConflictError(branch string, err error) *RebaseConflictError {
	return &RebaseConflictError{Branch: branch, Err: err}
}

// CommandError represents a failure from an external command (git, glab)
type CommandError struct {
	Command string
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s command failed", e.Command)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(": %s %v", e.Command, e.Args)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", e.Stderr)
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", e.Stdout)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new CommandError
func NewCommandError(command string, args []string, stdout, stderr string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Args:    args,
		Stdout:  stdout,
		Stderr:  stderr,
		Err:     err,
	}
}
