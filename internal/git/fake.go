package git

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gitstack.dev/gitstack/internal/changeid"
	gserrors "gitstack.dev/gitstack/internal/errors"
)

// Fake implements Runner over an in-memory commit graph, for engine
// tests. It models just enough of git: linear history, local and remote
// branches, arbitrary refs, cherry-picks that mint new shas, and
// programmable cherry-pick failures.
type Fake struct {
	// Dir stands in for the .git directory path
	Dir string
	// User is the configured committer name
	User string
	// URL is the push remote url
	URL string
	// Dirty simulates uncommitted changes
	Dirty bool

	commits  map[string]Commit
	parents  map[string]string
	branches map[string]string
	remote   map[string]string
	refs     map[string]string

	head       string
	headBranch string
	seq        int

	// failCherryPick maps an original sha to the failure its replay hits
	failCherryPick map[string]bool

	// PushCalls counts PushRefspecs invocations, for asserting batching
	PushCalls int
	// PushedRefspecs accumulates every refspec pushed
	PushedRefspecs []string
	// DeletedRemote accumulates remote branch deletions
	DeletedRemote []string
}

// NewFake creates a fake repository with the base branch existing both
// locally and on the remote, checked out at the same root commit.
func NewFake(base string) *Fake {
	f := &Fake{
		Dir:            "/fake/.git",
		User:           "alice",
		URL:            "git@gitlab.example.com:group/project.git",
		commits:        map[string]Commit{},
		parents:        map[string]string{},
		branches:       map[string]string{},
		remote:         map[string]string{},
		refs:           map[string]string{},
		failCherryPick: map[string]bool{},
	}

	root := f.newCommit("", "root commit")
	f.branches[base] = root
	f.remote[base] = root
	f.head = root
	f.headBranch = base
	return f
}

func (f *Fake) newCommit(parent, message string) string {
	f.seq++
	sha := fmt.Sprintf("%040x", f.seq)
	commit := Commit{
		SHA:     sha,
		Subject: subjectOf(message),
		Message: strings.TrimRight(message, "\n"),
	}
	if id, ok := changeid.Extract(message); ok {
		commit.ChangeID = id
	}
	f.commits[sha] = commit
	f.parents[sha] = parent
	return sha
}

// AddCommit appends a commit to the current branch and returns its sha.
func (f *Fake) AddCommit(message string) string {
	sha := f.newCommit(f.head, message)
	f.head = sha
	if f.headBranch != "" {
		f.branches[f.headBranch] = sha
	}
	return sha
}

// SeedRemoteBranch creates a branch on the remote holding a single
// commit with the given message, without touching local state.
func (f *Fake) SeedRemoteBranch(name, message string) string {
	sha := f.newCommit(f.remote[name], message)
	f.remote[name] = sha
	return sha
}

// FailCherryPickOf makes replaying the given commit fail with a
// conflict.
func (f *Fake) FailCherryPickOf(sha string) {
	f.failCherryPick[sha] = true
}

// RemoteBranch returns the remote sha for a branch, for assertions.
func (f *Fake) RemoteBranch(name string) (string, bool) {
	sha, ok := f.remote[name]
	return sha, ok
}

// Branch returns the local sha for a branch, for assertions.
func (f *Fake) Branch(name string) (string, bool) {
	sha, ok := f.branches[name]
	return sha, ok
}

func (f *Fake) resolve(ref string) (string, error) {
	if ref == "HEAD" {
		return f.head, nil
	}
	if remoteBranch, ok := strings.CutPrefix(ref, Remote+"/"); ok {
		sha, ok := f.remote[remoteBranch]
		if !ok {
			return "", fmt.Errorf("unknown remote branch %q", remoteBranch)
		}
		return sha, nil
	}
	if sha, ok := f.branches[ref]; ok {
		return sha, nil
	}
	if _, ok := f.commits[ref]; ok {
		return ref, nil
	}
	if sha, ok := f.refs[ref]; ok {
		return sha, nil
	}
	return "", fmt.Errorf("unknown revision %q", ref)
}

// GitDir returns the fake repository directory.
func (f *Fake) GitDir() (string, error) { return f.Dir, nil }

// UserName returns the fake committer name.
func (f *Fake) UserName() string { return f.User }

// RemoteURL returns the fake remote url.
func (f *Fake) RemoteURL() (string, error) { return f.URL, nil }

// CurrentBranch returns the checked-out branch, or "" when detached.
func (f *Fake) CurrentBranch() (string, error) { return f.headBranch, nil }

// HeadSHA returns the commit HEAD points at.
func (f *Fake) HeadSHA() (string, error) { return f.head, nil }

// ParentSHA returns the first parent of a commit.
func (f *Fake) ParentSHA(sha string) (string, error) {
	parent, ok := f.parents[sha]
	if !ok || parent == "" {
		return "", fmt.Errorf("commit %q has no parent", sha)
	}
	return parent, nil
}

// IsClean reports the Dirty flag.
func (f *Fake) IsClean() (bool, string, error) {
	if f.Dirty {
		return false, " M some/file.go", nil
	}
	return true, "", nil
}

// CommitsAhead walks from HEAD back to the remote base branch.
func (f *Fake) CommitsAhead(ctx context.Context, base string) ([]Commit, error) {
	target, ok := f.remote[base]
	if !ok {
		return nil, fmt.Errorf("unknown remote branch %q", base)
	}

	var commits []Commit
	for cur := f.head; cur != "" && cur != target; cur = f.parents[cur] {
		commits = append(commits, f.commits[cur])
	}
	// reverse to oldest-first
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}
	return commits, nil
}

// ReadCommit resolves a ref and returns the commit behind it.
func (f *Fake) ReadCommit(ref string) (Commit, error) {
	sha, err := f.resolve(ref)
	if err != nil {
		return Commit{}, err
	}
	return f.commits[sha], nil
}

// CheckoutBranch moves HEAD to an existing local branch.
func (f *Fake) CheckoutBranch(ctx context.Context, name string) error {
	sha, ok := f.branches[name]
	if !ok {
		return fmt.Errorf("unknown branch %q", name)
	}
	f.head = sha
	f.headBranch = name
	return nil
}

// CheckoutDetached detaches HEAD at a commit.
func (f *Fake) CheckoutDetached(ctx context.Context, sha string) error {
	resolved, err := f.resolve(sha)
	if err != nil {
		return err
	}
	f.head = resolved
	f.headBranch = ""
	return nil
}

// HardReset moves HEAD, and the current branch if any, to a commit.
func (f *Fake) HardReset(ctx context.Context, sha string) error {
	resolved, err := f.resolve(sha)
	if err != nil {
		return err
	}
	f.head = resolved
	if f.headBranch != "" {
		f.branches[f.headBranch] = resolved
	}
	return nil
}

// CherryPick replays a commit onto HEAD, minting a new sha.
func (f *Fake) CherryPick(ctx context.Context, ref string) error {
	source, err := f.resolve(ref)
	if err != nil {
		return err
	}
	if f.failCherryPick[source] {
		return gserrors.NewCommandError("git", []string{"cherry-pick", ref}, "",
			"error: could not apply "+source[:8], fmt.Errorf("exit status 1"))
	}

	sha := f.newCommit(f.head, f.commits[source].Message)
	f.head = sha
	if f.headBranch != "" {
		f.branches[f.headBranch] = sha
	}
	return nil
}

// CherryPickAbort is a no-op; the fake never leaves a pick in progress.
func (f *Fake) CherryPickAbort(ctx context.Context) error { return nil }

// AmendMessage replaces the message of the commit at HEAD, minting a
// new sha.
func (f *Fake) AmendMessage(ctx context.Context, message string) error {
	sha := f.newCommit(f.parents[f.head], message)
	f.head = sha
	if f.headBranch != "" {
		f.branches[f.headBranch] = sha
	}
	return nil
}

// GetRef returns the sha a ref points at, or "" when absent.
func (f *Fake) GetRef(name string) (string, error) {
	return f.refs[name], nil
}

// UpdateRef points a ref at a commit.
func (f *Fake) UpdateRef(name, sha string) error {
	f.refs[name] = sha
	return nil
}

// DeleteRef removes a ref.
func (f *Fake) DeleteRef(name string) error {
	delete(f.refs, name)
	return nil
}

// ForceBranch points a local branch at a commit.
func (f *Fake) ForceBranch(ctx context.Context, name, sha string) error {
	resolved, err := f.resolve(sha)
	if err != nil {
		return err
	}
	f.branches[name] = resolved
	return nil
}

// DeleteLocalBranch removes a local branch.
func (f *Fake) DeleteLocalBranch(ctx context.Context, name string) error {
	if f.headBranch == name {
		return fmt.Errorf("cannot delete checked-out branch %q", name)
	}
	if _, ok := f.branches[name]; !ok {
		return fmt.Errorf("unknown branch %q", name)
	}
	delete(f.branches, name)
	return nil
}

// LocalBranches returns sorted local branch names starting with prefix.
func (f *Fake) LocalBranches(prefix string) ([]string, error) {
	var names []string
	for name := range f.branches {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// BranchExists reports whether a local branch exists.
func (f *Fake) BranchExists(name string) bool {
	_, ok := f.branches[name]
	return ok
}

// RemoteSHA returns the remote sha for a branch, or "" when unknown.
func (f *Fake) RemoteSHA(branch string) (string, error) {
	return f.remote[branch], nil
}

// FetchBranch verifies the branch exists on the remote.
func (f *Fake) FetchBranch(ctx context.Context, branch string) error {
	if _, ok := f.remote[branch]; !ok {
		return fmt.Errorf("couldn't find remote ref %q", branch)
	}
	return nil
}

// PushRefspecs applies "sha:refs/heads/branch" refspecs to the remote
// in a single recorded call.
func (f *Fake) PushRefspecs(ctx context.Context, refspecs []string) error {
	if len(refspecs) == 0 {
		return nil
	}
	f.PushCalls++
	for _, spec := range refspecs {
		src, dst, ok := strings.Cut(spec, ":")
		if !ok {
			return fmt.Errorf("malformed refspec %q", spec)
		}
		resolved, err := f.resolve(src)
		if err != nil {
			return err
		}
		branch := strings.TrimPrefix(dst, "refs/heads/")
		f.remote[branch] = resolved
		f.PushedRefspecs = append(f.PushedRefspecs, spec)
	}
	return nil
}

// DeleteRemoteBranch removes a branch from the remote.
func (f *Fake) DeleteRemoteBranch(ctx context.Context, branch string) error {
	if _, ok := f.remote[branch]; !ok {
		return fmt.Errorf("remote ref %q does not exist", branch)
	}
	delete(f.remote, branch)
	f.DeletedRemote = append(f.DeletedRemote, branch)
	return nil
}
