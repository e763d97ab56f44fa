package engine

import (
	"gitstack.dev/gitstack/internal/changeid"
	"gitstack.dev/gitstack/internal/git"
)

// ChainEntry is one commit's review plan: which branch carries it and
// which branch its review targets.
type ChainEntry struct {
	Commit       git.Commit
	SourceBranch string
	TargetBranch string
}

// BuildChain computes the review plan for an ordered commit list. The
// first commit targets the base branch; every later commit targets its
// predecessor's source branch. The chain is derived fresh on every run,
// never stored.
func BuildChain(commits []git.Commit, baseBranch, user string) []ChainEntry {
	// Hosting services reference local branch names
	targetBase := normalizeBase(baseBranch)

	chain := make([]ChainEntry, 0, len(commits))
	for i, commit := range commits {
		entry := ChainEntry{
			Commit:       commit,
			SourceBranch: changeid.BranchName(user, commit.ChangeID),
		}
		if i == 0 {
			entry.TargetBranch = targetBase
		} else {
			entry.TargetBranch = changeid.BranchName(user, commits[i-1].ChangeID)
		}
		chain = append(chain, entry)
	}
	return chain
}
