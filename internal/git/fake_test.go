package git

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	gserrors "gitstack.dev/gitstack/internal/errors"
)

func TestFakeCommitsAhead(t *testing.T) {
	ctx := context.Background()
	fake := NewFake("main")

	first := fake.AddCommit("first change\n\nChange-Id: aaaa1111@feat@1")
	second := fake.AddCommit("second change")

	commits, err := fake.CommitsAhead(ctx, "main")
	require.NoError(t, err)
	require.Len(t, commits, 2)
	require.Equal(t, first, commits[0].SHA)
	require.Equal(t, "aaaa1111@feat@1", commits[0].ChangeID)
	require.Equal(t, "first change", commits[0].Subject)
	require.Equal(t, second, commits[1].SHA)
	require.Empty(t, commits[1].ChangeID)
}

func TestFakeCherryPickMintsNewSHA(t *testing.T) {
	ctx := context.Background()
	fake := NewFake("main")

	original := fake.AddCommit("a change")
	base, err := fake.ParentSHA(original)
	require.NoError(t, err)

	require.NoError(t, fake.CheckoutDetached(ctx, base))
	require.NoError(t, fake.CherryPick(ctx, original))

	head, err := fake.HeadSHA()
	require.NoError(t, err)
	require.NotEqual(t, original, head)

	replayed, err := fake.ReadCommit(head)
	require.NoError(t, err)
	require.Equal(t, "a change", replayed.Subject)
}

func TestFakeCherryPickFailure(t *testing.T) {
	ctx := context.Background()
	fake := NewFake("main")

	sha := fake.AddCommit("conflicting change")
	fake.FailCherryPickOf(sha)

	base, err := fake.ParentSHA(sha)
	require.NoError(t, err)
	require.NoError(t, fake.CheckoutDetached(ctx, base))

	err = fake.CherryPick(ctx, sha)
	require.Error(t, err)
	var cmdErr *gserrors.CommandError
	require.ErrorAs(t, err, &cmdErr)
}

func TestFakeAmendMessage(t *testing.T) {
	ctx := context.Background()
	fake := NewFake("main")

	original := fake.AddCommit("a change")
	require.NoError(t, fake.AmendMessage(ctx, "a change\n\nChange-Id: bbbb2222@feat@1"))

	head, err := fake.HeadSHA()
	require.NoError(t, err)
	require.NotEqual(t, original, head)

	commit, err := fake.ReadCommit(head)
	require.NoError(t, err)
	require.Equal(t, "bbbb2222@feat@1", commit.ChangeID)

	// the branch follows the amend
	branchSHA, ok := fake.Branch("main")
	require.True(t, ok)
	require.Equal(t, head, branchSHA)
}

func TestFakePushRefspecsBatch(t *testing.T) {
	ctx := context.Background()
	fake := NewFake("main")

	first := fake.AddCommit("one")
	second := fake.AddCommit("two")

	err := fake.PushRefspecs(ctx, []string{
		first + ":refs/heads/alice/stack-a@feat@1",
		second + ":refs/heads/alice/stack-b@feat@2",
	})
	require.NoError(t, err)
	require.Equal(t, 1, fake.PushCalls)

	sha, ok := fake.RemoteBranch("alice/stack-a@feat@1")
	require.True(t, ok)
	require.Equal(t, first, sha)
	sha, ok = fake.RemoteBranch("alice/stack-b@feat@2")
	require.True(t, ok)
	require.Equal(t, second, sha)
}

func TestFakeRefs(t *testing.T) {
	fake := NewFake("main")
	sha := fake.AddCommit("one")

	require.NoError(t, fake.UpdateRef("refs/git-stack/backup", sha))
	got, err := fake.GetRef("refs/git-stack/backup")
	require.NoError(t, err)
	require.Equal(t, sha, got)

	require.NoError(t, fake.DeleteRef("refs/git-stack/backup"))
	got, err = fake.GetRef("refs/git-stack/backup")
	require.NoError(t, err)
	require.Empty(t, got)
}
