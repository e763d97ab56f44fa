// Package engine implements the stacked-change reconciliation engine:
// it keeps a linear sequence of local commits, their review branches,
// and their remote review requests converged across repeated pushes,
// amends, and upstream merges.
package engine

import (
	"strings"
	"sync"

	"gitstack.dev/gitstack/internal/git"
	"gitstack.dev/gitstack/internal/hosting"
	"gitstack.dev/gitstack/internal/mapping"
	"gitstack.dev/gitstack/internal/output"
)

// BackupRef points at HEAD's pre-rewrite position. If it exists, the
// last history rewrite did not complete cleanly.
const BackupRef = "refs/git-stack/backup"

// maxParallel caps the worker pool for remote fan-out phases
const maxParallel = 4

// Engine orchestrates the version-control backend, the hosting client,
// and the mapping store.
type Engine struct {
	git   git.Runner
	host  hosting.Client
	store *mapping.Store
	log   *output.Splog

	user      string
	stackName string
	dryRun    bool

	// promptStackName is injectable for tests; defaults to an
	// interactive prompt
	promptStackName func() (string, error)
}

// Options configures a new Engine.
type Options struct {
	Git    git.Runner
	Host   hosting.Client
	Store  *mapping.Store
	Log    *output.Splog
	User   string
	DryRun bool
	// StackName overrides stack-name resolution for this run
	StackName string
	// PromptStackName replaces the interactive stack-name prompt
	PromptStackName func() (string, error)
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		git:             opts.Git,
		host:            opts.Host,
		store:           opts.Store,
		log:             opts.Log,
		user:            opts.User,
		stackName:       opts.StackName,
		dryRun:          opts.DryRun,
		promptStackName: opts.PromptStackName,
	}
	if e.log == nil {
		e.log = output.NewSplog(false)
	}
	if e.promptStackName == nil {
		e.promptStackName = askStackName
	}
	return e
}

// normalizeBase strips the remote-tracking prefix; the engine qualifies
// the base itself where a remote ref is needed.
func normalizeBase(base string) string {
	return strings.TrimPrefix(base, git.Remote+"/")
}

// forEach runs fn for every index with a bounded worker pool. Each fn
// writes its own slot of the caller's result slice, so reporting order
// stays deterministic while execution is concurrent.
func forEach(n int, fn func(i int)) {
	if n == 0 {
		return
	}
	workers := n
	if workers > maxParallel {
		workers = maxParallel
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}
