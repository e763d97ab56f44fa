package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	gserrors "gitstack.dev/gitstack/internal/errors"
)

const (
	// glabCommandTimeout bounds a single glab invocation
	glabCommandTimeout = 2 * time.Minute

	// glabRetryBudget is the number of attempts for transient failures
	glabRetryBudget = 3
)

var mrURLPattern = regexp.MustCompile(`/merge_requests/(\d+)`)

// transientMarkers identify retryable failures in glab output
var transientMarkers = []string{"timeout", "connection", "rate limit", "502", "503", "504"}

// GitLabClient drives the glab CLI, using its JSON API subcommand for
// structured output. Transient failures are retried with exponential
// backoff; all other errors fail permanently.
type GitLabClient struct {
	workingDir string
}

// NewGitLabClient creates a client running glab in the given directory.
func NewGitLabClient(workingDir string) *GitLabClient {
	return &GitLabClient{workingDir: workingDir}
}

func (c *GitLabClient) run(ctx context.Context, args ...string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < glabRetryBudget; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<(attempt-1)) * time.Second):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		cmdCtx, cancel := context.WithTimeout(ctx, glabCommandTimeout)
		cmd := exec.CommandContext(cmdCtx, "glab", args...)
		if c.workingDir != "" {
			cmd.Dir = c.workingDir
		}
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		cancel()
		if err == nil {
			return strings.TrimSpace(stdout.String()), nil
		}

		if _, ok := err.(*exec.Error); ok {
			// glab binary missing: an environment error, never retried
			return "", fmt.Errorf("glab CLI not found, install it from https://gitlab.com/gitlab-org/cli: %w", err)
		}

		lastErr = gserrors.NewCommandError("glab", args, stdout.String(), stderr.String(), err)

		if !isTransient(stdout.String(), stderr.String()) {
			return "", lastErr
		}
	}

	return "", lastErr
}

func isTransient(stdout, stderr string) bool {
	combined := strings.ToLower(stdout + stderr)
	for _, marker := range transientMarkers {
		if strings.Contains(combined, marker) {
			return true
		}
	}
	return false
}

// glabMR is the subset of the GitLab MR payload we consume
type glabMR struct {
	IID          int    `json:"iid"`
	WebURL       string `json:"web_url"`
	Title        string `json:"title"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	State        string `json:"state"`
}

func (m glabMR) review() Review {
	return Review{
		ID:           m.IID,
		URL:          m.WebURL,
		Title:        m.Title,
		SourceBranch: m.SourceBranch,
		TargetBranch: m.TargetBranch,
		State:        State(m.State),
	}
}

// CreateMR opens a GitLab merge request.
func (c *GitLabClient) CreateMR(ctx context.Context, source, target, title, description string) (*Review, error) {
	out, err := c.run(ctx,
		"mr", "create",
		"--source-branch", source,
		"--target-branch", target,
		"--title", title,
		"--description", description,
		"--remove-source-branch",
		"--yes",
	)
	if err != nil {
		return nil, err
	}

	// glab prints the MR URL on its own line
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, "merge_requests") || !strings.Contains(line, "http") {
			continue
		}
		m := mrURLPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var id int
		fmt.Sscanf(m[1], "%d", &id)
		return &Review{
			ID:           id,
			URL:          line,
			Title:        title,
			SourceBranch: source,
			TargetBranch: target,
			State:        StateOpen,
		}, nil
	}

	return nil, fmt.Errorf("could not parse merge request url from glab output: %q", out)
}

// UpdateMR updates a merge request's title and target branch.
func (c *GitLabClient) UpdateMR(ctx context.Context, id int, title, targetBranch string) error {
	args := []string{"mr", "update", fmt.Sprint(id), "--title", title, "--remove-source-branch"}
	if targetBranch != "" {
		args = append(args, "--target-branch", targetBranch)
	}
	_, err := c.run(ctx, args...)
	return err
}

// GetMRState returns the merge request's state via the JSON API.
func (c *GitLabClient) GetMRState(ctx context.Context, id int) (State, error) {
	out, err := c.run(ctx, "api", fmt.Sprintf("projects/:id/merge_requests/%d", id))
	if err != nil {
		return "", err
	}

	var mr glabMR
	if err := json.Unmarshal([]byte(out), &mr); err != nil {
		return "", fmt.Errorf("could not parse merge request %d: %w", id, err)
	}
	if mr.State == "" {
		return "", fmt.Errorf("could not determine state for merge request %d", id)
	}
	return State(mr.State), nil
}

// CloseMR closes a merge request.
func (c *GitLabClient) CloseMR(ctx context.Context, id int) error {
	_, err := c.run(ctx, "mr", "close", fmt.Sprint(id))
	return err
}

// AddNote adds a comment to a merge request.
func (c *GitLabClient) AddNote(ctx context.Context, id int, body string) (int, error) {
	out, err := c.run(ctx, "api", "-X", "POST",
		fmt.Sprintf("projects/:id/merge_requests/%d/notes", id),
		"-f", "body="+body,
	)
	if err != nil {
		return 0, err
	}

	var note struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &note); err != nil {
		return 0, fmt.Errorf("could not parse created note: %w", err)
	}
	return note.ID, nil
}

// UpdateNote replaces the body of an existing comment.
func (c *GitLabClient) UpdateNote(ctx context.Context, id, noteID int, body string) error {
	_, err := c.run(ctx, "api", "-X", "PUT",
		fmt.Sprintf("projects/:id/merge_requests/%d/notes/%d", id, noteID),
		"-f", "body="+body,
	)
	return err
}

// ListNotes returns the merge request's comments, excluding system notes.
func (c *GitLabClient) ListNotes(ctx context.Context, id int) ([]Note, error) {
	out, err := c.run(ctx, "api",
		fmt.Sprintf("projects/:id/merge_requests/%d/notes", id),
		"--paginate",
	)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var raw []struct {
		ID     int    `json:"id"`
		Body   string `json:"body"`
		System bool   `json:"system"`
	}
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("could not parse notes for merge request %d: %w", id, err)
	}

	var notes []Note
	for _, n := range raw {
		if n.System {
			continue
		}
		notes = append(notes, Note{ID: n.ID, Body: n.Body})
	}
	return notes, nil
}

// SetDependencies marks the given merge requests as blocking this one.
// A 404 from the blocks API means the instance lacks the feature
// (GitLab Premium/Ultimate only) and maps to ErrDependenciesUnsupported.
func (c *GitLabClient) SetDependencies(ctx context.Context, id int, blocking []int) error {
	for _, blockingID := range blocking {
		_, err := c.run(ctx, "api", "-X", "POST",
			fmt.Sprintf("projects/:id/merge_requests/%d/blocks", id),
			"-f", fmt.Sprintf("blocking_merge_request_id=%d", blockingID),
		)
		if err != nil {
			if cmdErr, ok := err.(*gserrors.CommandError); ok &&
				(strings.Contains(cmdErr.Stderr, "404") || strings.Contains(cmdErr.Stdout, "404")) {
				return gserrors.ErrDependenciesUnsupported
			}
			return err
		}
	}
	return nil
}

// FindByStackName returns all open merge requests whose source branch
// belongs to the named stack.
func (c *GitLabClient) FindByStackName(ctx context.Context, stackName string) ([]Review, error) {
	out, err := c.run(ctx, "api", "projects/:id/merge_requests",
		"-X", "GET", "--paginate", "-f", "state=opened",
	)
	if err != nil {
		return nil, err
	}

	var raw []glabMR
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("could not parse merge request list: %w", err)
	}

	marker := "@" + stackName + "@"
	var reviews []Review
	for _, mr := range raw {
		if strings.Contains(mr.SourceBranch, marker) {
			reviews = append(reviews, mr.review())
		}
	}
	return reviews, nil
}

// FindBySourceBranch returns the open merge request for a source branch.
func (c *GitLabClient) FindBySourceBranch(ctx context.Context, branch string) (*Review, error) {
	out, err := c.run(ctx, "api", "projects/:id/merge_requests",
		"-X", "GET", "-f", "state=opened", "-f", "source_branch="+branch,
	)
	if err != nil {
		return nil, err
	}

	var raw []glabMR
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("could not parse merge request list: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	review := raw[0].review()
	return &review, nil
}
