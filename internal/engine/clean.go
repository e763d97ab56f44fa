package engine

import (
	"context"
	"sort"

	"gitstack.dev/gitstack/internal/changeid"
	"gitstack.dev/gitstack/internal/hosting"
)

// Clean removes stale state in two passes: local stack branches that
// are unmapped and have no open review, then mapping entries whose
// branch is gone or whose review is closed or merged. Mapping entries
// are never removed implicitly by other operations.
func (e *Engine) Clean(ctx context.Context) error {
	stale, err := e.findStaleBranches(ctx)
	if err != nil {
		return err
	}

	if len(stale) == 0 {
		e.log.Info("No stale branches found")
	} else {
		e.log.Info("Found %d stale branch(es)...", len(stale))
		deleted := 0
		for _, branch := range stale {
			if e.dryRun {
				e.log.Info("  [DRY-RUN] Would delete branch %s", branch)
				continue
			}
			if err := e.git.DeleteLocalBranch(ctx, branch); err != nil {
				e.log.Debug("local delete of %s: %v", branch, err)
			}
			if err := e.git.DeleteRemoteBranch(ctx, branch); err != nil {
				e.log.Debug("remote delete of %s: %v", branch, err)
			}
			e.log.Info("  Deleted branch %s", branch)
			deleted++
		}
		if deleted > 0 {
			e.log.Info("+ Deleted %d stale branch(es)", deleted)
		}
	}

	snapshot := e.store.Snapshot()
	if len(snapshot) == 0 {
		e.log.Info("No MRs in mapping file")
		return nil
	}

	e.log.Info("Checking %d MR(s)...", len(snapshot))

	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var toRemove []string
	closed, orphaned := 0, 0
	for _, id := range ids {
		entry := snapshot[id]
		branch := changeid.BranchName(e.user, id)

		if !e.git.BranchExists(branch) {
			e.log.Info("  MR !%d branch '%s' not found locally, removing from mapping", entry.ReviewID, branch)
			toRemove = append(toRemove, id)
			orphaned++
			continue
		}

		state, err := e.host.GetMRState(ctx, entry.ReviewID)
		if err != nil {
			e.log.Warn("Could not check MR !%d, keeping in mapping", entry.ReviewID)
			continue
		}
		if state == hosting.StateClosed || state == hosting.StateMerged {
			e.log.Info("  MR !%d is %s, removing from mapping", entry.ReviewID, state)
			toRemove = append(toRemove, id)
			closed++
		} else {
			e.log.Info("  MR !%d is %s, keeping in mapping", entry.ReviewID, state)
		}
	}

	if len(toRemove) == 0 {
		e.log.Info("+ No closed or orphaned MRs found")
		return nil
	}
	if e.dryRun {
		e.log.Info("[DRY-RUN] Would remove %d MR(s) from mapping", len(toRemove))
		return nil
	}

	if err := e.store.Delete(toRemove...); err != nil {
		return err
	}
	e.log.Info("+ Removed %d closed/merged and %d orphaned MR(s) from mapping", closed, orphaned)
	return nil
}

// findStaleBranches returns local stack branches that are unmapped and
// have no open review. When the remote check fails the branch is kept;
// deleting a branch that still backs a review is worse than leaving a
// stale one around.
func (e *Engine) findStaleBranches(ctx context.Context) ([]string, error) {
	prefix := e.user + "/stack-"
	local, err := e.git.LocalBranches(prefix)
	if err != nil {
		return nil, err
	}
	if len(local) == 0 {
		return nil, nil
	}

	mapped := map[string]bool{}
	for id := range e.store.Snapshot() {
		mapped[changeid.BranchName(e.user, id)] = true
	}

	var stale []string
	for _, branch := range local {
		if mapped[branch] {
			continue
		}
		remoteSHA, err := e.git.RemoteSHA(branch)
		if err != nil {
			e.log.Info("  Skipping %s - could not check remote", branch)
			continue
		}
		if remoteSHA != "" {
			review, err := e.host.FindBySourceBranch(ctx, branch)
			if err != nil {
				e.log.Info("  Skipping %s - could not check for open MR", branch)
				continue
			}
			if review != nil {
				e.log.Info("  Skipping %s - has open MR on remote", branch)
				continue
			}
		}
		stale = append(stale, branch)
	}
	sort.Strings(stale)
	return stale, nil
}
