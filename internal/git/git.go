package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"gitstack.dev/gitstack/internal/changeid"
	gserrors "gitstack.dev/gitstack/internal/errors"
)

// Remote is the remote all stack branches are pushed to.
const Remote = "origin"

// Runner defines the repository operations used by the engine. This
// allows the engine to be tested against an in-memory implementation.
type Runner interface {
	// Repository information
	GitDir() (string, error)
	UserName() string
	RemoteURL() (string, error)
	CurrentBranch() (string, error)
	HeadSHA() (string, error)
	ParentSHA(sha string) (string, error)
	IsClean() (bool, string, error)

	// Commit queries
	CommitsAhead(ctx context.Context, base string) ([]Commit, error)
	ReadCommit(ref string) (Commit, error)

	// Working tree mutations
	CheckoutBranch(ctx context.Context, name string) error
	CheckoutDetached(ctx context.Context, sha string) error
	HardReset(ctx context.Context, sha string) error
	CherryPick(ctx context.Context, ref string) error
	CherryPickAbort(ctx context.Context) error
	AmendMessage(ctx context.Context, message string) error

	// Refs
	GetRef(name string) (string, error)
	UpdateRef(name, sha string) error
	DeleteRef(name string) error

	// Branches
	ForceBranch(ctx context.Context, name, sha string) error
	DeleteLocalBranch(ctx context.Context, name string) error
	LocalBranches(prefix string) ([]string, error)
	BranchExists(name string) bool

	// Remote operations
	RemoteSHA(branch string) (string, error)
	FetchBranch(ctx context.Context, branch string) error
	PushRefspecs(ctx context.Context, refspecs []string) error
	DeleteRemoteBranch(ctx context.Context, branch string) error
}

// Real implements Runner against an actual repository, shelling out to
// git for mutations and using go-git for read-only queries.
type Real struct {
	run  *CommandRunner
	repo *gogit.Repository
}

// NewReal opens the repository containing dir. Returns
// ErrNotInRepository when dir is not inside a work tree.
func NewReal(dir string) (*Real, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, gserrors.ErrNotInRepository
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	return &Real{
		run:  NewCommandRunner(dir),
		repo: repo,
	}, nil
}

// GitDir returns the absolute path of the repository's .git directory.
func (r *Real) GitDir() (string, error) {
	out, err := r.run.Run(nil, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}
	return filepath.Clean(out), nil
}

// UserName returns the configured git user name, or "" when unset.
func (r *Real) UserName() string {
	out, err := r.run.Run(nil, "config", "user.name")
	if err != nil {
		return ""
	}
	return out
}

// RemoteURL returns the first URL of the push remote.
func (r *Real) RemoteURL() (string, error) {
	remote, err := r.repo.Remote(Remote)
	if err != nil {
		return "", fmt.Errorf("no %q remote configured: %w", Remote, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %q has no url", Remote)
	}
	return urls[0], nil
}

// CurrentBranch returns the checked-out branch name, or "" when HEAD is
// detached.
func (r *Real) CurrentBranch() (string, error) {
	return r.run.Run(nil, "branch", "--show-current")
}

// HeadSHA returns the commit sha HEAD points at.
func (r *Real) HeadSHA() (string, error) {
	return r.run.Run(nil, "rev-parse", "HEAD")
}

// ParentSHA returns the first parent of the given commit.
func (r *Real) ParentSHA(sha string) (string, error) {
	return r.run.Run(nil, "rev-parse", sha+"^")
}

// IsClean reports whether the working tree has no uncommitted changes,
// returning the porcelain status for error messages.
func (r *Real) IsClean() (bool, string, error) {
	out, err := r.run.Run(nil, "status", "--porcelain")
	if err != nil {
		return false, "", err
	}
	return out == "", out, nil
}

// CommitsAhead returns the commits on HEAD that are not on the remote
// base branch, oldest first.
func (r *Real) CommitsAhead(ctx context.Context, base string) ([]Commit, error) {
	lines, err := r.run.RunLines(ctx, "rev-list", "--reverse", Remote+"/"+base+"..HEAD")
	if err != nil {
		return nil, err
	}

	commits := make([]Commit, 0, len(lines))
	for _, sha := range lines {
		commit, err := r.ReadCommit(sha)
		if err != nil {
			return nil, err
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// ReadCommit resolves a ref and loads the commit behind it.
func (r *Real) ReadCommit(ref string) (Commit, error) {
	sha, err := r.run.Run(nil, "rev-parse", ref)
	if err != nil {
		return Commit{}, err
	}

	obj, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return Commit{}, fmt.Errorf("failed to read commit %s: %w", sha, err)
	}

	commit := Commit{
		SHA:     sha,
		Subject: subjectOf(obj.Message),
		Message: strings.TrimRight(obj.Message, "\n"),
	}
	if id, ok := changeid.Extract(obj.Message); ok {
		commit.ChangeID = id
	}
	return commit, nil
}

// CheckoutBranch checks out an existing branch.
func (r *Real) CheckoutBranch(ctx context.Context, name string) error {
	_, err := r.run.Run(ctx, "checkout", name)
	return err
}

// CheckoutDetached detaches HEAD at the given commit.
func (r *Real) CheckoutDetached(ctx context.Context, sha string) error {
	_, err := r.run.Run(ctx, "checkout", "--detach", sha)
	return err
}

// HardReset resets the current branch and working tree to the commit.
func (r *Real) HardReset(ctx context.Context, sha string) error {
	_, err := r.run.Run(ctx, "reset", "--hard", sha)
	return err
}

// CherryPick replays a commit onto HEAD.
func (r *Real) CherryPick(ctx context.Context, ref string) error {
	_, err := r.run.Run(ctx, "cherry-pick", ref)
	return err
}

// CherryPickAbort cancels an in-progress cherry-pick.
func (r *Real) CherryPickAbort(ctx context.Context) error {
	_, err := r.run.Run(ctx, "cherry-pick", "--abort")
	return err
}

// AmendMessage rewrites the message of the commit at HEAD. The message
// is passed on stdin so multi-line bodies survive intact.
func (r *Real) AmendMessage(ctx context.Context, message string) error {
	_, err := r.run.RunWithInput(ctx, message, "commit", "--amend", "-F", "-")
	return err
}

// GetRef resolves a fully-qualified ref, returning "" when it does not
// exist.
func (r *Real) GetRef(name string) (string, error) {
	out, err := r.run.Run(nil, "rev-parse", "--verify", "--quiet", name)
	if err != nil {
		var cmdErr *gserrors.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Stderr == "" {
			// rev-parse --quiet exits 1 with no output for missing refs
			return "", nil
		}
		return "", err
	}
	return out, nil
}

// UpdateRef points a fully-qualified ref at a commit, creating it if
// needed.
func (r *Real) UpdateRef(name, sha string) error {
	_, err := r.run.Run(nil, "update-ref", name, sha)
	return err
}

// DeleteRef removes a fully-qualified ref.
func (r *Real) DeleteRef(name string) error {
	_, err := r.run.Run(nil, "update-ref", "-d", name)
	return err
}

// ForceBranch points a local branch at a commit without checking it out.
func (r *Real) ForceBranch(ctx context.Context, name, sha string) error {
	_, err := r.run.Run(ctx, "branch", "-f", name, sha)
	return err
}

// DeleteLocalBranch force-deletes a local branch.
func (r *Real) DeleteLocalBranch(ctx context.Context, name string) error {
	_, err := r.run.Run(ctx, "branch", "-D", name)
	return err
}

// LocalBranches returns local branch names starting with prefix.
func (r *Real) LocalBranches(prefix string) ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// BranchExists reports whether a local branch exists.
func (r *Real) BranchExists(name string) bool {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	return err == nil
}

// RemoteSHA returns the sha of the remote-tracking ref for a branch, or
// "" when the branch is unknown locally. Callers fetch first when
// freshness matters.
func (r *Real) RemoteSHA(branch string) (string, error) {
	ref, err := r.repo.Reference(plumbing.NewRemoteReferenceName(Remote, branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", err
	}
	return ref.Hash().String(), nil
}

// FetchBranch updates the remote-tracking ref for a single branch.
func (r *Real) FetchBranch(ctx context.Context, branch string) error {
	_, err := r.run.Run(ctx, "fetch", Remote, branch)
	return err
}

// PushRefspecs force-pushes all refspecs in a single invocation.
func (r *Real) PushRefspecs(ctx context.Context, refspecs []string) error {
	if len(refspecs) == 0 {
		return nil
	}
	args := append([]string{"push", "--force", Remote}, refspecs...)
	_, err := r.run.Run(ctx, args...)
	return err
}

// DeleteRemoteBranch removes a branch from the remote.
func (r *Real) DeleteRemoteBranch(ctx context.Context, branch string) error {
	_, err := r.run.Run(ctx, "push", Remote, "--delete", branch)
	return err
}
