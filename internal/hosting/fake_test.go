package hosting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	gserrors "gitstack.dev/gitstack/internal/errors"
	"gitstack.dev/gitstack/internal/hosting"
)

func TestFakeCreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	fake := hosting.NewFake()

	review, err := fake.CreateMR(ctx, "alice/stack-a@feat@1", "main", "Add parser", "body")
	require.NoError(t, err)
	require.Equal(t, 1, review.ID)
	require.Equal(t, hosting.StateOpen, review.State)

	require.NoError(t, fake.UpdateMR(ctx, review.ID, "New title", "develop"))
	got, ok := fake.Review(review.ID)
	require.True(t, ok)
	require.Equal(t, "New title", got.Title)
	require.Equal(t, "develop", got.TargetBranch)

	require.Equal(t, 1, fake.CountOps("CreateMR"))
	require.Equal(t, 1, fake.CountOps("UpdateMR"))
}

func TestFakeNotes(t *testing.T) {
	ctx := context.Background()
	fake := hosting.NewFake()

	review, err := fake.CreateMR(ctx, "src", "main", "t", "")
	require.NoError(t, err)

	noteID, err := fake.AddNote(ctx, review.ID, "first")
	require.NoError(t, err)
	require.NoError(t, fake.UpdateNote(ctx, review.ID, noteID, "second"))

	notes, err := fake.ListNotes(ctx, review.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "second", notes[0].Body)
}

func TestFakeDependenciesUnsupported(t *testing.T) {
	ctx := context.Background()
	fake := hosting.NewFake()
	fake.DependenciesUnsupported = true

	review, err := fake.CreateMR(ctx, "src", "main", "t", "")
	require.NoError(t, err)

	err = fake.SetDependencies(ctx, review.ID, []int{99})
	require.ErrorIs(t, err, gserrors.ErrDependenciesUnsupported)
}

func TestFakeFindByStackName(t *testing.T) {
	ctx := context.Background()
	fake := hosting.NewFake()

	_, err := fake.CreateMR(ctx, "alice/stack-a1@feat@1", "main", "one", "")
	require.NoError(t, err)
	_, err = fake.CreateMR(ctx, "alice/stack-b2@feat@2", "alice/stack-a1@feat@1", "two", "")
	require.NoError(t, err)
	_, err = fake.CreateMR(ctx, "alice/stack-c3@other@1", "main", "three", "")
	require.NoError(t, err)

	reviews, err := fake.FindByStackName(ctx, "feat")
	require.NoError(t, err)
	require.Len(t, reviews, 2)
}

func TestFakeFindBySourceBranch(t *testing.T) {
	ctx := context.Background()
	fake := hosting.NewFake()

	created, err := fake.CreateMR(ctx, "alice/stack-a1@feat@1", "main", "one", "")
	require.NoError(t, err)
	require.NoError(t, fake.CloseMR(ctx, created.ID))

	// Closed reviews are not returned
	got, err := fake.FindBySourceBranch(ctx, "alice/stack-a1@feat@1")
	require.NoError(t, err)
	require.Nil(t, got)
}
