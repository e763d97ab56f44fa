package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"gitstack.dev/gitstack/internal/changeid"
	gserrors "gitstack.dev/gitstack/internal/errors"
	"gitstack.dev/gitstack/internal/git"
	"gitstack.dev/gitstack/internal/mapping"
	"gitstack.dev/gitstack/internal/utils"
)

// chainSentinel marks the stack cross-reference comment so it is found
// and updated in place instead of duplicated on every push.
const chainSentinel = "<!-- git-stack-chain -->"

// maxTitleLength is the review title limit imposed by GitLab
const maxTitleLength = 255

// Push reconciles the local stack with the remote: every commit gets a
// change id, a pushed branch, and a review request targeting its
// predecessor. Running push twice with no new commits performs only
// update-class remote calls.
func (e *Engine) Push(ctx context.Context, baseBranch string) error {
	base := normalizeBase(baseBranch)

	commits, err := e.git.CommitsAhead(ctx, base)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		e.log.Info("No commits found between %s/%s and HEAD", git.Remote, base)
		return nil
	}
	e.log.Info("Found %d commit(s) to process", len(commits))

	commits, err = e.ensureChangeIDs(ctx, commits)
	if err != nil {
		return err
	}
	commits, err = e.spliceDownstream(ctx, commits)
	if err != nil {
		return err
	}

	chain := BuildChain(commits, base, e.user)

	if e.dryRun {
		e.printPlan(chain)
		return nil
	}

	if err := e.pushBranches(ctx, chain); err != nil {
		return err
	}
	if err := e.reconcileReviews(ctx, chain); err != nil {
		return err
	}
	e.linkDependencies(ctx, chain)
	e.refreshStackComments(ctx, chain)

	e.log.Newline()
	e.log.Info("+ Stack processing complete!")
	return nil
}

func (e *Engine) printPlan(chain []ChainEntry) {
	e.log.Newline()
	e.log.Info(strings.Repeat("=", 60))
	e.log.Info("DRY-RUN: Review Chain Plan")
	e.log.Info(strings.Repeat("=", 60))
	for i, entry := range chain {
		e.log.Newline()
		e.log.Info("%d. %s", i+1, entry.Commit.Subject)
		e.log.Info("   SHA: %s", entry.Commit.ShortSHA())
		e.log.Info("   Change-Id: %s", entry.Commit.ChangeID)
		e.log.Info("   Branch: %s", entry.SourceBranch)
		e.log.Info("   Target: %s", entry.TargetBranch)
		if existing, ok := e.store.Get(entry.Commit.ChangeID); ok {
			e.log.Info("   Action: UPDATE existing MR !%d", existing.ReviewID)
		} else {
			e.log.Info("   Action: CREATE new MR")
		}
	}
	e.log.Newline()
	e.log.Info(strings.Repeat("=", 60))
}

// pushBranches points every chain branch at its commit and force-pushes
// all of them in one multi-refspec push. The currently checked-out
// branch is never force-moved locally; the push updates its remote side
// directly.
func (e *Engine) pushBranches(ctx context.Context, chain []ChainEntry) error {
	e.log.Newline()
	e.log.Info("Creating/updating branches...")

	currentBranch, err := e.git.CurrentBranch()
	if err != nil {
		return err
	}

	refspecs := make([]string, 0, len(chain))
	for _, entry := range chain {
		if entry.SourceBranch != currentBranch {
			if err := e.git.ForceBranch(ctx, entry.SourceBranch, entry.Commit.SHA); err != nil {
				return err
			}
		}
		refspecs = append(refspecs, entry.Commit.SHA+":refs/heads/"+entry.SourceBranch)
	}

	if err := e.git.PushRefspecs(ctx, refspecs); err != nil {
		return err
	}
	for _, entry := range chain {
		e.log.Info("  + %s at %s", entry.SourceBranch, entry.Commit.ShortSHA())
	}
	return nil
}

type reviewResult struct {
	created  bool
	reviewID int
	url      string
	err      error
}

// reconcileReviews creates or updates the review request for every
// chain entry concurrently. A create is dispatched only when the
// mapping has no entry for the change id, which enforces at most one
// create per identity; new mappings are persisted once after the whole
// phase.
func (e *Engine) reconcileReviews(ctx context.Context, chain []ChainEntry) error {
	e.log.Newline()
	e.log.Info("Creating/updating MRs...")

	projectID := e.projectID()
	results := make([]reviewResult, len(chain))

	forEach(len(chain), func(i int) {
		entry := chain[i]
		title := utils.TruncateTitle(entry.Commit.Subject, maxTitleLength)

		if existing, ok := e.store.Get(entry.Commit.ChangeID); ok {
			// Always pass the target so reordered stacks converge
			err := e.host.UpdateMR(ctx, existing.ReviewID, title, entry.TargetBranch)
			results[i] = reviewResult{reviewID: existing.ReviewID, url: existing.ReviewURL, err: err}
			return
		}

		description := changeid.StripFromMessage(entry.Commit.Message)
		review, err := e.host.CreateMR(ctx, entry.SourceBranch, entry.TargetBranch, title, strings.TrimRight(description, "\n"))
		if err != nil {
			results[i] = reviewResult{err: err}
			return
		}
		results[i] = reviewResult{created: true, reviewID: review.ID, url: review.URL}
	})

	created := map[string]mapping.Entry{}
	for i, result := range results {
		if result.err != nil || !result.created {
			continue
		}
		created[chain[i].Commit.ChangeID] = mapping.Entry{
			ReviewID:  result.reviewID,
			ReviewURL: result.url,
			ProjectID: projectID,
		}
	}
	if err := e.store.Merge(created); err != nil {
		return fmt.Errorf("failed to save mapping: %w", err)
	}

	for i, result := range results {
		switch {
		case result.err != nil:
			e.log.Warn("Failed to process MR for %s: %v", chain[i].Commit.Subject, result.err)
		case result.created:
			e.log.Info("  + Created MR !%d: %s", result.reviewID, chain[i].Commit.Subject)
			e.log.Info("    %s", result.url)
		default:
			e.log.Info("  ~ Updated MR !%d: %s", result.reviewID, chain[i].Commit.Subject)
			e.log.Info("    %s", result.url)
		}
	}
	return nil
}

type dependencyResult struct {
	skipped     bool
	unsupported bool
	reviewID    int
	blockingID  int
	err         error
}

// linkDependencies marks every non-first review as blocked by its
// predecessor. The first "feature unavailable" response suppresses the
// remaining dependency calls for this run; everything else is reported
// per entry without aborting siblings.
func (e *Engine) linkDependencies(ctx context.Context, chain []ChainEntry) {
	e.log.Newline()
	e.log.Info("Setting MR dependencies...")

	var unsupported atomic.Bool
	results := make([]dependencyResult, len(chain))

	forEach(len(chain), func(i int) {
		if i == 0 {
			results[i] = dependencyResult{skipped: true}
			return
		}
		entry, ok := e.store.Get(chain[i].Commit.ChangeID)
		if !ok {
			results[i] = dependencyResult{skipped: true}
			return
		}
		prev, ok := e.store.Get(chain[i-1].Commit.ChangeID)
		if !ok {
			results[i] = dependencyResult{skipped: true}
			return
		}
		if unsupported.Load() {
			results[i] = dependencyResult{skipped: true}
			return
		}

		err := e.host.SetDependencies(ctx, entry.ReviewID, []int{prev.ReviewID})
		result := dependencyResult{reviewID: entry.ReviewID, blockingID: prev.ReviewID, err: err}
		if errors.Is(err, gserrors.ErrDependenciesUnsupported) {
			unsupported.Store(true)
			result.unsupported = true
		}
		results[i] = result
	})

	warned := false
	for _, result := range results {
		switch {
		case result.skipped:
		case result.unsupported:
			if !warned {
				warned = true
				e.log.Warn("Skipping MR dependencies: not supported by this instance")
			}
		case result.err != nil:
			e.log.Warn("Failed to set dependency for MR !%d on !%d: %v", result.reviewID, result.blockingID, result.err)
		default:
			e.log.Info("  + Set MR !%d to depend on !%d", result.reviewID, result.blockingID)
		}
	}
}

// refreshStackComments keeps one cross-reference comment per review
// listing the whole stack, updating the existing comment when the
// sentinel is found.
func (e *Engine) refreshStackComments(ctx context.Context, chain []ChainEntry) {
	e.log.Newline()
	e.log.Info("Updating MR stack links...")

	snapshot := e.store.Snapshot()
	results := make([]dependencyResult, len(chain))

	forEach(len(chain), func(i int) {
		entry, ok := snapshot[chain[i].Commit.ChangeID]
		if !ok {
			results[i] = dependencyResult{skipped: true}
			return
		}

		body := buildStackComment(chain, i, snapshot)
		notes, err := e.host.ListNotes(ctx, entry.ReviewID)
		if err != nil {
			results[i] = dependencyResult{reviewID: entry.ReviewID, err: err}
			return
		}

		noteID := 0
		for _, note := range notes {
			if strings.Contains(note.Body, chainSentinel) {
				noteID = note.ID
				break
			}
		}
		if noteID != 0 {
			err = e.host.UpdateNote(ctx, entry.ReviewID, noteID, body)
		} else {
			_, err = e.host.AddNote(ctx, entry.ReviewID, body)
		}
		results[i] = dependencyResult{reviewID: entry.ReviewID, err: err}
	})

	for _, result := range results {
		switch {
		case result.skipped:
		case result.err != nil:
			e.log.Warn("Failed to update stack links for MR !%d: %v", result.reviewID, result.err)
		default:
			e.log.Info("  + Updated stack links comment for MR !%d", result.reviewID)
		}
	}
}

// buildStackComment renders the stacked-reviews comment, marking the
// current review in bold.
func buildStackComment(chain []ChainEntry, current int, snapshot map[string]mapping.Entry) string {
	lines := []string{chainSentinel, "", "## Stacked MRs", ""}

	for i, entry := range chain {
		info, ok := snapshot[entry.Commit.ChangeID]
		if !ok {
			continue
		}

		prefix, suffix := "  - ", ""
		if i == current {
			if i > 0 {
				lines = append(lines, "")
			}
			prefix, suffix = "  - **", "** (this MR)"
		}
		lines = append(lines, fmt.Sprintf("%s[!%d](%s) %s%s", prefix, info.ReviewID, info.ReviewURL, entry.Commit.Subject, suffix))
		if i == current && i < len(chain)-1 {
			lines = append(lines, "")
		}
	}

	lines = append(lines, "", "---", "")
	return strings.Join(lines, "\n")
}

// projectID derives the hosting project path from the remote url.
func (e *Engine) projectID() string {
	url, err := e.git.RemoteURL()
	if err != nil {
		return "unknown"
	}
	project, err := git.ProjectFromRemoteURL(url)
	if err != nil {
		return "unknown"
	}
	return project
}
