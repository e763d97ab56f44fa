package engine

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"

	"gitstack.dev/gitstack/internal/changeid"
	gserrors "gitstack.dev/gitstack/internal/errors"
	"gitstack.dev/gitstack/internal/git"
)

// askStackName interactively prompts for a stack name until a valid one
// is entered.
func askStackName() (string, error) {
	var name string
	prompt := &survey.Input{
		Message: "Stack name (e.g. 'feature', 'bugfix-123'):",
	}
	validator := func(ans interface{}) error {
		s, _ := ans.(string)
		if !changeid.ValidateStackName(s) {
			return fmt.Errorf("stack names contain only lowercase letters, numbers and hyphens, with no leading or trailing hyphen")
		}
		return nil
	}
	if err := survey.AskOne(prompt, &name, survey.WithValidator(validator)); err != nil {
		return "", err
	}
	return name, nil
}

// resolveStackName picks the stack name for this run: the explicit
// override wins, then any name already embedded in the commits, then an
// interactive prompt. Dry runs never prompt.
func (e *Engine) resolveStackName(commits []git.Commit) (string, error) {
	if e.stackName != "" {
		if !changeid.ValidateStackName(e.stackName) {
			return "", fmt.Errorf("invalid stack name %q: use only lowercase letters, numbers and hyphens", e.stackName)
		}
		e.log.Info("Using stack name '%s' from command line", e.stackName)
		return e.stackName, nil
	}

	for _, commit := range commits {
		if commit.ChangeID == "" {
			continue
		}
		if name, ok := changeid.StackName(commit.ChangeID); ok {
			e.log.Info("Using stack name '%s' from existing commits", name)
			return name, nil
		}
	}

	if e.dryRun {
		return "example", nil
	}
	return e.promptStackName()
}

// nextPosition returns the first unused stack position: one past the
// highest position already embedded in the commits. Positions are
// append-only identifiers, never renumbered.
func nextPosition(commits []git.Commit) int {
	next := 1
	for _, commit := range commits {
		if commit.ChangeID == "" {
			continue
		}
		if pos, ok := changeid.Position(commit.ChangeID); ok && pos >= next {
			next = pos + 1
		}
	}
	return next
}

// ensureChangeIDs guarantees every commit carries a change id, rewriting
// history with a backup-and-cherry-pick procedure. On any cherry-pick
// failure the repository is restored from the backup ref and a rewrite
// error is returned; the repository is never left half-rewritten.
func (e *Engine) ensureChangeIDs(ctx context.Context, commits []git.Commit) ([]git.Commit, error) {
	needing := 0
	for _, commit := range commits {
		if commit.ChangeID == "" {
			needing++
		}
	}
	if needing == 0 {
		return commits, nil
	}

	clean, status, err := e.git.IsClean()
	if err != nil {
		return nil, err
	}
	if !clean {
		return nil, gserrors.NewDirtyWorkingTreeError(status)
	}

	stackName, err := e.resolveStackName(commits)
	if err != nil {
		return nil, err
	}
	position := nextPosition(commits)

	if e.dryRun {
		e.log.Info("[DRY-RUN] Would add Change-Ids to %d commit(s) with stack name '%s'", needing, stackName)
		for i := range commits {
			if commits[i].ChangeID != "" {
				continue
			}
			id := changeid.Generate(stackName, position)
			position++
			commits[i].ChangeID = id
			commits[i].Message = changeid.AppendToMessage(commits[i].Message, id)
			e.log.Info("  %s: %s -> Change-Id: %s", commits[i].ShortSHA(), commits[i].Subject, id)
		}
		return commits, nil
	}

	headSHA, err := e.git.HeadSHA()
	if err != nil {
		return nil, err
	}
	if err := e.git.UpdateRef(BackupRef, headSHA); err != nil {
		return nil, err
	}

	e.log.Info("Adding Change-Ids to %d commit(s) with stack name '%s'...", needing, stackName)

	originalBranch, err := e.git.CurrentBranch()
	if err != nil {
		return nil, err
	}
	baseSHA, err := e.git.ParentSHA(commits[0].SHA)
	if err != nil {
		return nil, err
	}
	if err := e.git.CheckoutDetached(ctx, baseSHA); err != nil {
		return nil, err
	}

	for i := range commits {
		if err := e.git.CherryPick(ctx, commits[i].SHA); err != nil {
			e.rollback(ctx, originalBranch, headSHA)
			return nil, gserrors.NewRewriteError(commits[i].SHA, commits[i].Subject, true, err)
		}

		if commits[i].ChangeID == "" {
			id := changeid.Generate(stackName, position)
			position++
			newMessage := changeid.AppendToMessage(commits[i].Message, id)
			if err := e.git.AmendMessage(ctx, newMessage); err != nil {
				e.rollback(ctx, originalBranch, headSHA)
				return nil, gserrors.NewRewriteError(commits[i].SHA, commits[i].Subject, true, err)
			}
			commits[i].ChangeID = id
			commits[i].Message = newMessage
			e.log.Info("  %s: %s -> Change-Id: %s", commits[i].ShortSHA(), commits[i].Subject, id)
		}

		newSHA, err := e.git.HeadSHA()
		if err != nil {
			e.rollback(ctx, originalBranch, headSHA)
			return nil, gserrors.NewRewriteError(commits[i].SHA, commits[i].Subject, true, err)
		}
		commits[i].SHA = newSHA
	}

	// Point the original branch at the rewritten tip
	tip := commits[len(commits)-1].SHA
	if originalBranch != "" {
		if err := e.git.CheckoutBranch(ctx, originalBranch); err != nil {
			return nil, err
		}
		if err := e.git.HardReset(ctx, tip); err != nil {
			return nil, err
		}
	} else if err := e.git.CheckoutDetached(ctx, tip); err != nil {
		return nil, err
	}

	// The backup is only removed once the rewrite fully succeeded
	if err := e.git.DeleteRef(BackupRef); err != nil {
		e.log.Warn("could not remove backup ref: %v", err)
	}

	return commits, nil
}

// rollback restores the repository to its pre-rewrite state. The backup
// ref is kept; its presence records that the last rewrite failed.
func (e *Engine) rollback(ctx context.Context, originalBranch, backupSHA string) {
	if err := e.git.CherryPickAbort(ctx); err != nil {
		e.log.Debug("cherry-pick abort: %v", err)
	}
	if originalBranch != "" {
		if err := e.git.CheckoutBranch(ctx, originalBranch); err != nil {
			e.log.Warn("rollback: could not return to branch %s: %v", originalBranch, err)
		}
		return
	}
	if err := e.git.CheckoutDetached(ctx, backupSHA); err != nil {
		e.log.Warn("rollback: could not restore HEAD to %s: %v", backupSHA, err)
	}
}
