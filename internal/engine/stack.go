package engine

import (
	"context"
	"fmt"
	"sort"

	gserrors "gitstack.dev/gitstack/internal/errors"
	"gitstack.dev/gitstack/internal/git"
	"gitstack.dev/gitstack/internal/output"
)

// findStack returns the mapping entries of a named stack sorted by
// position, or ErrStackNotFound with the available names logged.
func (e *Engine) findStack(stackName string) ([]stackItem, error) {
	stacks := e.stacksFromMapping()
	if len(stacks) == 0 {
		e.log.Info("No stacks found (mapping file is empty)")
		return nil, gserrors.ErrStackNotFound
	}

	items, ok := stacks[stackName]
	if !ok {
		e.log.Info("Error: Stack '%s' not found", stackName)
		e.log.Newline()
		e.log.Info("Available stacks:")
		names := make([]string, 0, len(stacks))
		for name := range stacks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			e.log.Info("  - %s", name)
		}
		return nil, fmt.Errorf("stack %q: %w", stackName, gserrors.ErrStackNotFound)
	}
	return items, nil
}

// Checkout switches to the highest-position branch of a named stack.
func (e *Engine) Checkout(ctx context.Context, stackName string) error {
	items, err := e.findStack(stackName)
	if err != nil {
		return err
	}
	last := items[len(items)-1]

	e.log.Info("Checking out latest branch from stack '%s'...", stackName)
	e.log.Info("  Branch: %s (position %d)", output.ColorBranch(last.branch), last.position)

	if e.dryRun {
		e.log.Info("[DRY-RUN] Would run: git checkout %s", last.branch)
		return nil
	}

	if err := e.git.CheckoutBranch(ctx, last.branch); err != nil {
		e.log.Warn("Could not checkout branch %s", last.branch)
		e.log.Warn("You may need to fetch it first: git fetch %s %s", git.Remote, last.branch)
		return err
	}
	e.log.Info("+ Checked out %s", last.branch)
	return nil
}

// Remove tears a named stack down: closes every review, deletes the
// local and remote branches, and purges the mapping entries. Individual
// failures are reported and skipped; the teardown keeps going.
func (e *Engine) Remove(ctx context.Context, stackName string) error {
	items, err := e.findStack(stackName)
	if err != nil {
		return err
	}

	e.log.Info("Removing stack '%s' (%d commits)...", stackName, len(items))

	closed := 0
	for _, item := range items {
		if e.dryRun {
			e.log.Info("[DRY-RUN] Would close MR !%d", item.entry.ReviewID)
			continue
		}
		if err := e.host.CloseMR(ctx, item.entry.ReviewID); err != nil {
			e.log.Warn("Could not close MR !%d", item.entry.ReviewID)
			continue
		}
		e.log.Info("  Closed MR !%d", item.entry.ReviewID)
		closed++
	}

	deleted := 0
	for _, item := range items {
		if e.dryRun {
			e.log.Info("[DRY-RUN] Would delete branch %s", item.branch)
			continue
		}
		if err := e.git.DeleteLocalBranch(ctx, item.branch); err != nil {
			e.log.Debug("local delete of %s: %v", item.branch, err)
		}
		if err := e.git.DeleteRemoteBranch(ctx, item.branch); err != nil {
			e.log.Debug("remote delete of %s: %v", item.branch, err)
		}
		e.log.Info("  Deleted branch %s", item.branch)
		deleted++
	}

	if e.dryRun {
		e.log.Info("[DRY-RUN] Would remove %d items from mapping", len(items))
		return nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.changeID)
	}
	if err := e.store.Delete(ids...); err != nil {
		return err
	}

	e.log.Info("+ Removed stack '%s'", stackName)
	e.log.Info("  Closed %d MR(s)", closed)
	e.log.Info("  Deleted %d branch(es)", deleted)
	return nil
}
