package engine

import (
	"context"

	"gitstack.dev/gitstack/internal/changeid"
	"gitstack.dev/gitstack/internal/git"
)

// Reindex resets the stack's identity: closes every mapped review for
// the current commit set, strips the embedded change ids, and re-runs
// identifier injection under a new stack name.
func (e *Engine) Reindex(ctx context.Context, baseBranch string) error {
	base := normalizeBase(baseBranch)

	e.log.Info("Reindexing stack...")

	commits, err := e.git.CommitsAhead(ctx, base)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		e.log.Info("No commits found between %s/%s and HEAD", git.Remote, base)
		return nil
	}
	e.log.Info("Found %d commit(s) to reindex", len(commits))

	var toRemove []string
	closed := 0
	for _, commit := range commits {
		if commit.ChangeID == "" {
			continue
		}
		entry, ok := e.store.Get(commit.ChangeID)
		if !ok {
			continue
		}

		if e.dryRun {
			e.log.Info("[DRY-RUN] Would close MR !%d for Change-Id %s", entry.ReviewID, commit.ChangeID)
			continue
		}
		if err := e.host.CloseMR(ctx, entry.ReviewID); err != nil {
			e.log.Warn("Could not close MR !%d", entry.ReviewID)
			continue
		}
		e.log.Info("  Closed MR !%d for Change-Id %s", entry.ReviewID, commit.ChangeID)
		toRemove = append(toRemove, commit.ChangeID)
		closed++
	}
	if closed > 0 {
		if err := e.store.Delete(toRemove...); err != nil {
			return err
		}
		e.log.Info("+ Closed %d MR(s)", closed)
	}

	e.log.Info("Removing old Change-Ids and creating new ones...")

	// Strip identifiers in memory; the rewriter treats every commit as
	// unidentified and amends the stripped messages back in
	for i := range commits {
		commits[i].ChangeID = ""
		commits[i].Message = changeid.StripFromMessage(commits[i].Message)
	}

	if _, err := e.ensureChangeIDs(ctx, commits); err != nil {
		return err
	}

	if !e.dryRun {
		e.log.Info("+ Reindexing complete! Run 'git-stack push' to create new MRs")
	}
	return nil
}
