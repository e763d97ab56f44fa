package hosting

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	gserrors "gitstack.dev/gitstack/internal/errors"
)

// GitHubClient implements Client against the GitHub REST API, treating
// pull requests as review requests. GitHub has no native review
// dependency feature, so SetDependencies always reports the capability
// as unsupported.
type GitHubClient struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubClient creates a client for the given repository. The token
// is read from GITHUB_TOKEN.
func NewGitHubClient(ctx context.Context, owner, repo string) (*GitHubClient, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN is not set")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	return &GitHubClient{client: client, owner: owner, repo: repo}, nil
}

func toReview(pr *github.PullRequest) Review {
	review := Review{}
	if pr.Number != nil {
		review.ID = *pr.Number
	}
	if pr.HTMLURL != nil {
		review.URL = *pr.HTMLURL
	}
	if pr.Title != nil {
		review.Title = *pr.Title
	}
	if pr.Head != nil && pr.Head.Ref != nil {
		review.SourceBranch = *pr.Head.Ref
	}
	if pr.Base != nil && pr.Base.Ref != nil {
		review.TargetBranch = *pr.Base.Ref
	}
	review.State = StateOpen
	if pr.Merged != nil && *pr.Merged {
		review.State = StateMerged
	} else if pr.State != nil && *pr.State == "closed" {
		review.State = StateClosed
	}
	return review
}

// CreateMR opens a pull request.
func (c *GitHubClient) CreateMR(ctx context.Context, source, target, title, description string) (*Review, error) {
	pr := &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(source),
		Base:  github.String(target),
	}
	if description != "" {
		pr.Body = github.String(description)
	}

	created, _, err := c.client.PullRequests.Create(ctx, c.owner, c.repo, pr)
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request: %w", err)
	}

	review := toReview(created)
	return &review, nil
}

// UpdateMR updates a pull request's title and base branch.
func (c *GitHubClient) UpdateMR(ctx context.Context, id int, title, targetBranch string) error {
	update := &github.PullRequest{Title: github.String(title)}
	if targetBranch != "" {
		update.Base = &github.PullRequestBranch{Ref: github.String(targetBranch)}
	}

	_, _, err := c.client.PullRequests.Edit(ctx, c.owner, c.repo, id, update)
	if err != nil {
		return fmt.Errorf("failed to update pull request %d: %w", id, err)
	}
	return nil
}

// GetMRState returns the pull request's lifecycle state.
func (c *GitHubClient) GetMRState(ctx context.Context, id int) (State, error) {
	pr, _, err := c.client.PullRequests.Get(ctx, c.owner, c.repo, id)
	if err != nil {
		return "", fmt.Errorf("failed to get pull request %d: %w", id, err)
	}
	return toReview(pr).State, nil
}

// CloseMR closes a pull request.
func (c *GitHubClient) CloseMR(ctx context.Context, id int) error {
	_, _, err := c.client.PullRequests.Edit(ctx, c.owner, c.repo, id, &github.PullRequest{
		State: github.String("closed"),
	})
	if err != nil {
		return fmt.Errorf("failed to close pull request %d: %w", id, err)
	}
	return nil
}

// AddNote adds an issue comment to a pull request.
func (c *GitHubClient) AddNote(ctx context.Context, id int, body string) (int, error) {
	comment, _, err := c.client.Issues.CreateComment(ctx, c.owner, c.repo, id, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to comment on pull request %d: %w", id, err)
	}
	if comment.ID == nil {
		return 0, fmt.Errorf("created comment on pull request %d has no id", id)
	}
	return int(*comment.ID), nil
}

// UpdateNote replaces the body of an existing comment.
func (c *GitHubClient) UpdateNote(ctx context.Context, id, noteID int, body string) error {
	_, _, err := c.client.Issues.EditComment(ctx, c.owner, c.repo, int64(noteID), &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to update comment %d on pull request %d: %w", noteID, id, err)
	}
	return nil
}

// ListNotes returns the pull request's comments.
func (c *GitHubClient) ListNotes(ctx context.Context, id int) ([]Note, error) {
	var notes []Note
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		comments, resp, err := c.client.Issues.ListComments(ctx, c.owner, c.repo, id, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments on pull request %d: %w", id, err)
		}
		for _, comment := range comments {
			if comment.ID == nil || comment.Body == nil {
				continue
			}
			notes = append(notes, Note{ID: int(*comment.ID), Body: *comment.Body})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return notes, nil
}

// SetDependencies is unsupported on GitHub.
func (c *GitHubClient) SetDependencies(ctx context.Context, id int, blocking []int) error {
	return gserrors.ErrDependenciesUnsupported
}

// FindByStackName returns all open pull requests whose head branch
// belongs to the named stack.
func (c *GitHubClient) FindByStackName(ctx context.Context, stackName string) ([]Review, error) {
	marker := "@" + stackName + "@"
	var reviews []Review

	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		prs, resp, err := c.client.PullRequests.List(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list pull requests: %w", err)
		}
		for _, pr := range prs {
			if pr.Head == nil || pr.Head.Ref == nil {
				continue
			}
			if strings.Contains(*pr.Head.Ref, marker) {
				reviews = append(reviews, toReview(pr))
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return reviews, nil
}

// FindBySourceBranch returns the open pull request for a head branch.
func (c *GitHubClient) FindBySourceBranch(ctx context.Context, branch string) (*Review, error) {
	prs, _, err := c.client.PullRequests.List(ctx, c.owner, c.repo, &github.PullRequestListOptions{
		Head:        c.owner + ":" + branch,
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests: %w", err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	review := toReview(prs[0])
	return &review, nil
}
