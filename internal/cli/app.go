package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gitstack.dev/gitstack/internal/config"
	"gitstack.dev/gitstack/internal/engine"
	"gitstack.dev/gitstack/internal/git"
	"gitstack.dev/gitstack/internal/hosting"
	"gitstack.dev/gitstack/internal/mapping"
	"gitstack.dev/gitstack/internal/output"
)

// app bundles the pieces every subcommand needs: the repository, the
// engine wired to it, and the log sink.
type app struct {
	git    *git.Real
	engine *engine.Engine
	gitDir string
	log    *output.Splog
}

// newApp opens the enclosing repository and assembles an engine for it.
func newApp(ctx context.Context, stackName string, dryRun bool) (*app, error) {
	runner, err := git.NewReal(".")
	if err != nil {
		return nil, err
	}

	gitDir, err := runner.GitDir()
	if err != nil {
		return nil, err
	}

	log, err := output.NewSplogWithFile(verbose, filepath.Join(gitDir, "git-stack.log"))
	if err != nil {
		return nil, err
	}

	host, err := selectHost(ctx, runner)
	if err != nil {
		log.Close()
		return nil, err
	}

	store := mapping.NewStore(config.MappingPath(gitDir))
	user := config.ResolveIdentity(gitDir, runner.UserName())

	eng := engine.New(engine.Options{
		Git:       runner,
		Host:      host,
		Store:     store,
		Log:       log,
		User:      user,
		StackName: stackName,
		DryRun:    dryRun,
	})

	return &app{git: runner, engine: eng, gitDir: gitDir, log: log}, nil
}

func (a *app) Close() {
	if a.log != nil {
		a.log.Close()
	}
}

// selectHost picks the hosting client from the origin remote. GitHub
// remotes get the REST client; everything else is assumed to be GitLab
// and goes through glab.
func selectHost(ctx context.Context, runner git.Runner) (hosting.Client, error) {
	url, err := runner.RemoteURL()
	if err != nil {
		return nil, fmt.Errorf("resolving remote %s: %w", git.Remote, err)
	}

	if strings.Contains(url, "github.com") {
		project, err := git.ProjectFromRemoteURL(url)
		if err != nil {
			return nil, err
		}
		owner, repo, ok := strings.Cut(project, "/")
		if !ok {
			return nil, fmt.Errorf("cannot determine owner/repo from %q", url)
		}
		return hosting.NewGitHubClient(ctx, owner, repo)
	}

	return hosting.NewGitLabClient("."), nil
}
