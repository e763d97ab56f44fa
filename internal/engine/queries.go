package engine

import (
	"context"
	"sort"
	"strconv"

	"gitstack.dev/gitstack/internal/changeid"
	"gitstack.dev/gitstack/internal/git"
	"gitstack.dev/gitstack/internal/mapping"
	"gitstack.dev/gitstack/internal/output"
)

// truncateSubject cuts a subject line for display, counting characters
// so multi-byte subjects are never split mid-rune.
func truncateSubject(subject string, max int) string {
	runes := []rune(subject)
	if len(runes) <= max {
		return subject
	}
	return string(runes[:max])
}

// stackItem is one mapping entry projected onto its stack.
type stackItem struct {
	changeID string
	position int
	branch   string
	entry    mapping.Entry
}

// stacksFromMapping groups the mapping by stack name. Legacy ids whose
// stack name cannot be parsed group under "unknown".
func (e *Engine) stacksFromMapping() map[string][]stackItem {
	stacks := map[string][]stackItem{}
	for id, entry := range e.store.Snapshot() {
		name, ok := changeid.StackName(id)
		if !ok {
			name = "unknown"
		}
		position, _ := changeid.Position(id)

		stacks[name] = append(stacks[name], stackItem{
			changeID: id,
			position: position,
			branch:   changeid.BranchName(e.user, id),
			entry:    entry,
		})
	}
	for name := range stacks {
		items := stacks[name]
		sort.Slice(items, func(i, j int) bool { return items[i].position < items[j].position })
	}
	return stacks
}

// List prints every stack in the mapping with its branches and reviews.
func (e *Engine) List() {
	stacks := e.stacksFromMapping()
	if len(stacks) == 0 {
		e.log.Info("No stacks found (mapping file is empty)")
		return
	}

	names := make([]string, 0, len(stacks))
	for name := range stacks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		items := stacks[name]
		last := items[len(items)-1]

		e.log.Newline()
		e.log.Info("Stack: %s", output.ColorStackName(name))
		e.log.Info("   Commits: %d", len(items))
		e.log.Info("   Last branch: %s", output.ColorBranch(last.branch))
		e.log.Info("   Last MR: !%d (%s)", last.entry.ReviewID, last.entry.ReviewURL)
		e.log.Newline()
		e.log.Info("   MRs in stack:")
		for _, item := range items {
			e.log.Info("     %d. !%d - %s", item.position, item.entry.ReviewID, item.branch)
		}
	}

	e.log.Newline()
	e.log.Info("+ Found %d stack(s)", len(stacks))
}

// Show reports the stack membership of the commit at HEAD.
func (e *Engine) Show() error {
	commit, err := e.git.ReadCommit("HEAD")
	if err != nil {
		return err
	}

	if commit.ChangeID == "" {
		e.log.Info("Current commit has no Change-Id")
		e.log.Info("   Commit: %s", commit.ShortSHA())
		e.log.Info("   Subject: %s", commit.Subject)
		e.log.Newline()
		e.log.Info("Run 'git-stack push' to add a Change-Id and create an MR")
		return nil
	}

	e.log.Info("Current Commit")
	e.log.Info("   SHA: %s", commit.ShortSHA())
	e.log.Info("   Subject: %s", commit.Subject)
	e.log.Info("   Change-Id: %s", commit.ChangeID)

	stackName, hasStack := changeid.StackName(commit.ChangeID)
	if hasStack {
		e.log.Newline()
		e.log.Info("Stack: %s", output.ColorStackName(stackName))
		if position, ok := changeid.Position(commit.ChangeID); ok {
			e.log.Info("   Position: %d", position)
		}
	}

	if entry, ok := e.store.Get(commit.ChangeID); ok {
		e.log.Newline()
		e.log.Info("Merge Request")
		e.log.Info("   MR: !%d", entry.ReviewID)
		e.log.Info("   URL: %s", entry.ReviewURL)
		e.log.Info("   Branch: %s", output.ColorBranch(changeid.BranchName(e.user, commit.ChangeID)))
	} else {
		e.log.Newline()
		e.log.Info("No MR found for this commit")
		e.log.Info("   Run 'git-stack push' to create an MR")
	}

	if hasStack {
		siblings := e.stacksFromMapping()[stackName]
		if len(siblings) > 1 {
			e.log.Newline()
			e.log.Info("Other commits in '%s' stack:", stackName)
			for _, item := range siblings {
				if item.changeID != commit.ChangeID {
					e.log.Info("     %d. !%d", item.position, item.entry.ReviewID)
				}
			}
		}
	}
	return nil
}

// Status classifies every commit in the current stack as up-to-date,
// unpushed, or diverged by comparing its sha against the remote branch
// tip.
func (e *Engine) Status(ctx context.Context, baseBranch string) error {
	base := normalizeBase(baseBranch)

	commits, err := e.git.CommitsAhead(ctx, base)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		e.log.Info("No commits found between %s/%s and HEAD", git.Remote, base)
		return nil
	}
	if commits[0].ChangeID == "" {
		e.log.Info("No Change-Ids found. Run 'git-stack push' first.")
		return nil
	}

	stackName, _ := changeid.StackName(commits[0].ChangeID)
	e.log.Info("Stack: %s", output.ColorStackName(stackName))
	e.log.Info("   Base: %s", base)
	e.log.Info("   Commits: %d", len(commits))
	e.log.Newline()

	for i, commit := range commits {
		branch := changeid.BranchName(e.user, commit.ChangeID)
		entry, mapped := e.store.Get(commit.ChangeID)

		icon, text, detail := "x", "No MR", ""
		if mapped {
			remoteSHA, err := e.git.RemoteSHA(branch)
			switch {
			case err != nil || remoteSHA == "":
				icon, text = "!", output.ColorWarn("Not pushed")
			case remoteSHA == commit.SHA:
				icon, text = "+", output.ColorOK("Up-to-date")
			default:
				icon, text = "!", output.ColorWarn("Out of sync")
				detail = "Local: " + commit.ShortSHA() + ", Remote: " + remoteSHA[:8]
			}
		}

		mrText := "no MR"
		if mapped {
			mrText = "!" + strconv.Itoa(entry.ReviewID)
		}

		subject := truncateSubject(commit.Subject, 60)
		e.log.Info("  %s %d. %s", icon, i+1, subject)
		e.log.Info("      SHA: %s  MR: %s  Status: %s", commit.ShortSHA(), mrText, text)
		if detail != "" {
			e.log.Info("      %s", output.ColorDim(detail))
		}
	}
	return nil
}
