package engine

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"gitstack.dev/gitstack/internal/changeid"
	gserrors "gitstack.dev/gitstack/internal/errors"
	"gitstack.dev/gitstack/internal/git"
	"gitstack.dev/gitstack/internal/hosting"
)

type downstreamReview struct {
	position int
	review   hosting.Review
}

// branchPosition parses the stack position out of a review branch name
// (<user>/stack-<uuid>@<stack>@<position>).
func branchPosition(branch string) (int, bool) {
	if !strings.Contains(branch, changeid.Delimiter) {
		return 0, false
	}
	parts := strings.Split(branch, changeid.Delimiter)
	pos, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, false
	}
	return pos, true
}

// spliceDownstream rebases commits that exist remotely at a stack
// position beyond the local maximum onto the local tip, one at a time.
// When the local stack holds positions 1-3 but the remote has an open
// review at position 4, that commit is fetched and replayed on top.
//
// A conflict here is fatal but deliberately not rolled back: the user
// resolves the cherry-pick and re-runs push.
func (e *Engine) spliceDownstream(ctx context.Context, commits []git.Commit) ([]git.Commit, error) {
	if len(commits) == 0 || commits[0].ChangeID == "" {
		return commits, nil
	}
	stackName, ok := changeid.StackName(commits[0].ChangeID)
	if !ok {
		return commits, nil
	}

	maxLocal := 0
	for _, commit := range commits {
		if pos, ok := changeid.Position(commit.ChangeID); ok && pos > maxLocal {
			maxLocal = pos
		}
	}
	if maxLocal == 0 {
		return commits, nil
	}

	reviews, err := e.host.FindByStackName(ctx, stackName)
	if err != nil {
		return nil, err
	}

	var downstream []downstreamReview
	for _, review := range reviews {
		if review.State != hosting.StateOpen {
			continue
		}
		if pos, ok := branchPosition(review.SourceBranch); ok && pos > maxLocal {
			downstream = append(downstream, downstreamReview{position: pos, review: review})
		}
	}
	if len(downstream) == 0 {
		return commits, nil
	}

	sort.Slice(downstream, func(i, j int) bool {
		return downstream[i].position < downstream[j].position
	})

	e.log.Info("Found %d downstream commit(s) to rebase...", len(downstream))

	if e.dryRun {
		for _, d := range downstream {
			e.log.Info("[DRY-RUN] Would rebase: %s (position %d)", d.review.SourceBranch, d.position)
		}
		return commits, nil
	}

	for _, d := range downstream {
		branch := d.review.SourceBranch
		e.log.Info("  Rebasing %s...", branch)

		if err := e.git.FetchBranch(ctx, branch); err != nil {
			return nil, err
		}
		if err := e.git.CherryPick(ctx, git.Remote+"/"+branch); err != nil {
			return nil, gserrors.NewRebaseConflictError(branch, err)
		}

		replayed, err := e.git.ReadCommit("HEAD")
		if err != nil {
			return nil, err
		}
		commits = append(commits, replayed)
		e.log.Info("    + Rebased to %s", replayed.ShortSHA())
	}

	return commits, nil
}
