package engine_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gitstack.dev/gitstack/internal/changeid"
	"gitstack.dev/gitstack/internal/engine"
	gserrors "gitstack.dev/gitstack/internal/errors"
	"gitstack.dev/gitstack/internal/git"
	"gitstack.dev/gitstack/internal/hosting"
	"gitstack.dev/gitstack/internal/mapping"
	"gitstack.dev/gitstack/internal/output"
)

type fixture struct {
	git    *git.Fake
	host   *hosting.Fake
	store  *mapping.Store
	engine *engine.Engine
}

func newFixture(t *testing.T, opts engine.Options) *fixture {
	t.Helper()

	f := &fixture{
		git:   git.NewFake("main"),
		host:  hosting.NewFake(),
		store: mapping.NewStore(filepath.Join(t.TempDir(), "git-stack-mapping.json")),
	}

	opts.Git = f.git
	opts.Host = f.host
	opts.Store = f.store
	opts.Log = output.NewSplog(false)
	if opts.User == "" {
		opts.User = "alice"
	}
	if opts.PromptStackName == nil {
		opts.PromptStackName = func() (string, error) { return "feat", nil }
	}
	f.engine = engine.New(opts)
	return f
}

func (f *fixture) commitsAhead(t *testing.T) []git.Commit {
	t.Helper()
	commits, err := f.git.CommitsAhead(context.Background(), "main")
	require.NoError(t, err)
	return commits
}

func TestPushThreeCommitScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Options{StackName: "feat"})

	f.git.AddCommit("A")
	f.git.AddCommit("B")
	f.git.AddCommit("C")

	require.NoError(t, f.engine.Push(ctx, "main"))

	commits := f.commitsAhead(t)
	require.Len(t, commits, 3)
	for i, commit := range commits {
		name, ok := changeid.StackName(commit.ChangeID)
		require.True(t, ok)
		require.Equal(t, "feat", name)
		pos, ok := changeid.Position(commit.ChangeID)
		require.True(t, ok)
		require.Equal(t, i+1, pos)
	}

	// One batched push covered every branch
	require.Equal(t, 1, f.git.PushCalls)
	require.Len(t, f.git.PushedRefspecs, 3)

	// Each commit got exactly one review, chained onto its predecessor
	require.Equal(t, 3, f.host.CountOps("CreateMR"))
	require.Equal(t, 3, f.store.Len())

	first, err := f.host.FindBySourceBranch(ctx, "alice/stack-"+commits[0].ChangeID)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, "main", first.TargetBranch)

	second, err := f.host.FindBySourceBranch(ctx, "alice/stack-"+commits[1].ChangeID)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, "alice/stack-"+commits[0].ChangeID, second.TargetBranch)

	// Mapping entries carry the review and the project path
	entry, ok := f.store.Get(commits[0].ChangeID)
	require.True(t, ok)
	require.Equal(t, first.ID, entry.ReviewID)
	require.Equal(t, "group/project", entry.ProjectID)
}

func TestPushIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Options{StackName: "feat"})

	f.git.AddCommit("A")
	f.git.AddCommit("B")

	require.NoError(t, f.engine.Push(ctx, "main"))
	require.Equal(t, 2, f.host.CountOps("CreateMR"))
	mappedBefore := f.store.Len()

	require.NoError(t, f.engine.Push(ctx, "main"))

	// The second run performs only update-class calls
	require.Equal(t, 2, f.host.CountOps("CreateMR"))
	require.Equal(t, 2, f.host.CountOps("UpdateMR"))
	require.Equal(t, mappedBefore, f.store.Len())
}

func TestPushAtMostOneCreatePerIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Options{StackName: "feat"})

	f.git.AddCommit("A")
	require.NoError(t, f.engine.Push(ctx, "main"))

	// Amend twice, pushing after each; the change id survives the amends
	for i := 0; i < 2; i++ {
		head, err := f.git.ReadCommit("HEAD")
		require.NoError(t, err)
		require.NoError(t, f.git.AmendMessage(ctx, head.Message+"\n\nmore detail"))
		require.NoError(t, f.engine.Push(ctx, "main"))
	}

	require.Equal(t, 1, f.host.CountOps("CreateMR"))
	require.Equal(t, 2, f.host.CountOps("UpdateMR"))
	require.Equal(t, 1, f.store.Len())
}

func TestPushAppendOnlyPositions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Options{StackName: "feat"})

	f.git.AddCommit("A")
	f.git.AddCommit("B")
	require.NoError(t, f.engine.Push(ctx, "main"))

	identified := f.commitsAhead(t)
	require.Len(t, identified, 2)

	// Rebuild the branch with a brand-new oldest commit under the
	// existing two
	root, err := f.git.ParentSHA(identified[0].SHA)
	require.NoError(t, err)
	require.NoError(t, f.git.HardReset(ctx, root))
	f.git.AddCommit("new oldest")
	require.NoError(t, f.git.CherryPick(ctx, identified[0].SHA))
	require.NoError(t, f.git.CherryPick(ctx, identified[1].SHA))

	require.NoError(t, f.engine.Push(ctx, "main"))

	commits := f.commitsAhead(t)
	require.Len(t, commits, 3)

	// The inserted commit gets position 3; existing positions unchanged
	pos, ok := changeid.Position(commits[0].ChangeID)
	require.True(t, ok)
	require.Equal(t, 3, pos)
	pos, _ = changeid.Position(commits[1].ChangeID)
	require.Equal(t, 1, pos)
	pos, _ = changeid.Position(commits[2].ChangeID)
	require.Equal(t, 2, pos)
}

func TestPushRollbackOnCherryPickFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Options{StackName: "feat"})

	f.git.AddCommit("A")
	conflicting := f.git.AddCommit("B")
	f.git.FailCherryPickOf(conflicting)

	branchBefore, _ := f.git.Branch("main")
	headBefore, err := f.git.HeadSHA()
	require.NoError(t, err)

	err = f.engine.Push(ctx, "main")
	require.ErrorIs(t, err, gserrors.ErrRewriteRolledBack)

	// HEAD and the branch pointer are byte-identical to their pre-run
	// values, and no remote call was made
	headAfter, err := f.git.HeadSHA()
	require.NoError(t, err)
	require.Equal(t, headBefore, headAfter)
	branchAfter, _ := f.git.Branch("main")
	require.Equal(t, branchBefore, branchAfter)
	require.Equal(t, 0, f.host.CountOps("CreateMR"))

	// The backup ref survives as the incomplete-rewrite marker
	backup, err := f.git.GetRef(engine.BackupRef)
	require.NoError(t, err)
	require.Equal(t, headBefore, backup)
}

func TestPushBackupRefRemovedOnSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Options{StackName: "feat"})

	f.git.AddCommit("A")
	require.NoError(t, f.engine.Push(ctx, "main"))

	backup, err := f.git.GetRef(engine.BackupRef)
	require.NoError(t, err)
	require.Empty(t, backup)
}

func TestPushDownstreamSplice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Options{})

	// Local stack holds positions 1 and 2, already identified
	f.git.AddCommit("A\n\nChange-Id: aaaa1111@feat@1")
	f.git.AddCommit("B\n\nChange-Id: bbbb2222@feat@2")

	// Position 3 exists only remotely, with an open review and a mapped
	// entry from a previous run
	downstreamBranch := "alice/stack-cccc3333@feat@3"
	f.git.SeedRemoteBranch(downstreamBranch, "C\n\nChange-Id: cccc3333@feat@3")
	reviewID := f.host.AddReview(hosting.Review{
		SourceBranch: downstreamBranch,
		TargetBranch: "alice/stack-bbbb2222@feat@2",
		Title:        "C",
	})
	require.NoError(t, f.store.Put("cccc3333@feat@3", mapping.Entry{ReviewID: reviewID, ProjectID: "group/project"}))
	require.NoError(t, f.store.Put("aaaa1111@feat@1", mapping.Entry{ReviewID: f.host.AddReview(hosting.Review{SourceBranch: "alice/stack-aaaa1111@feat@1"})}))
	require.NoError(t, f.store.Put("bbbb2222@feat@2", mapping.Entry{ReviewID: f.host.AddReview(hosting.Review{SourceBranch: "alice/stack-bbbb2222@feat@2"})}))

	require.NoError(t, f.engine.Push(ctx, "main"))

	// The downstream commit was replayed onto the local tip and pushed
	commits := f.commitsAhead(t)
	require.Len(t, commits, 3)
	require.Equal(t, "cccc3333@feat@3", commits[2].ChangeID)
	require.Len(t, f.git.PushedRefspecs, 3)

	// No new reviews: everything was an update
	require.Equal(t, 0, f.host.CountOps("CreateMR"))
	require.Equal(t, 3, f.host.CountOps("UpdateMR"))
}

func TestPushConflictDuringDownstreamSplice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Options{})

	f.git.AddCommit("A\n\nChange-Id: aaaa1111@feat@1")

	downstreamBranch := "alice/stack-bbbb2222@feat@2"
	conflicting := f.git.SeedRemoteBranch(downstreamBranch, "B\n\nChange-Id: bbbb2222@feat@2")
	f.git.FailCherryPickOf(conflicting)
	f.host.AddReview(hosting.Review{SourceBranch: downstreamBranch})

	err := f.engine.Push(ctx, "main")
	require.ErrorIs(t, err, gserrors.ErrRebaseConflict)
	require.Contains(t, err.Error(), "cherry-pick --continue")
}

func TestPushDependencyCapabilityDegrades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Options{StackName: "feat"})
	f.host.DependenciesUnsupported = true

	f.git.AddCommit("A")
	f.git.AddCommit("B")

	// The run completes despite the missing capability
	require.NoError(t, f.engine.Push(ctx, "main"))
	require.Equal(t, 1, f.host.CountOps("SetDependencies"))
	require.Equal(t, 2, f.store.Len())
}

func TestPushDependenciesChainOnPredecessor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Options{StackName: "feat"})

	f.git.AddCommit("A")
	f.git.AddCommit("B")
	f.git.AddCommit("C")
	require.NoError(t, f.engine.Push(ctx, "main"))

	commits := f.commitsAhead(t)
	first, _ := f.store.Get(commits[0].ChangeID)
	second, _ := f.store.Get(commits[1].ChangeID)
	third, _ := f.store.Get(commits[2].ChangeID)

	require.Empty(t, f.host.Blocking(first.ReviewID))
	require.Equal(t, []int{first.ReviewID}, f.host.Blocking(second.ReviewID))
	require.Equal(t, []int{second.ReviewID}, f.host.Blocking(third.ReviewID))
}

func TestPushStackCommentsRefreshedNotDuplicated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Options{StackName: "feat"})

	f.git.AddCommit("A")
	f.git.AddCommit("B")

	require.NoError(t, f.engine.Push(ctx, "main"))
	require.NoError(t, f.engine.Push(ctx, "main"))

	commits := f.commitsAhead(t)
	entry, ok := f.store.Get(commits[0].ChangeID)
	require.True(t, ok)

	notes := f.host.Notes(entry.ReviewID)
	require.Len(t, notes, 1)
	require.True(t, strings.HasPrefix(notes[0].Body, "<!-- git-stack-chain -->"))
	require.Contains(t, notes[0].Body, "(this MR)")
}

func TestPushNothingToDo(t *testing.T) {
	f := newFixture(t, engine.Options{})
	require.NoError(t, f.engine.Push(context.Background(), "main"))
	require.Empty(t, f.host.Ops())
}

func TestPushDirtyWorkingTree(t *testing.T) {
	f := newFixture(t, engine.Options{StackName: "feat"})
	f.git.AddCommit("A")
	f.git.Dirty = true

	err := f.engine.Push(context.Background(), "main")
	require.ErrorIs(t, err, gserrors.ErrDirtyWorkingTree)
	require.Empty(t, f.host.Ops())
}

func TestPushDryRunMutatesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Options{DryRun: true})

	f.git.AddCommit("A")
	headBefore, err := f.git.HeadSHA()
	require.NoError(t, err)

	require.NoError(t, f.engine.Push(ctx, "main"))

	headAfter, err := f.git.HeadSHA()
	require.NoError(t, err)
	require.Equal(t, headBefore, headAfter)
	require.Equal(t, 0, f.git.PushCalls)
	require.Equal(t, 0, f.store.Len())

	// Read-only lookups are allowed; mutations are not
	for _, method := range []string{"CreateMR", "UpdateMR", "CloseMR", "AddNote", "UpdateNote", "SetDependencies"} {
		require.Zero(t, f.host.CountOps(method), method)
	}
}

func TestPushPromptsForStackName(t *testing.T) {
	ctx := context.Background()
	prompted := false
	f := newFixture(t, engine.Options{
		PromptStackName: func() (string, error) {
			prompted = true
			return "prompted-stack", nil
		},
	})

	f.git.AddCommit("A")
	require.NoError(t, f.engine.Push(ctx, "main"))

	require.True(t, prompted)
	commits := f.commitsAhead(t)
	name, ok := changeid.StackName(commits[0].ChangeID)
	require.True(t, ok)
	require.Equal(t, "prompted-stack", name)
}

func TestPushInvalidStackNameOverride(t *testing.T) {
	f := newFixture(t, engine.Options{StackName: "Bad_Name"})
	f.git.AddCommit("A")

	err := f.engine.Push(context.Background(), "main")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid stack name")
}
