package posts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trossachsgroup/site-backend/internal/posts"
)

func seededStore(t *testing.T) *posts.Store {
	t.Helper()
	s := posts.NewStore()
	require.NoError(t, s.Seed(context.Background(), posts.DefaultSeed()))
	return s
}

func TestEditorAddSaveCreates(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	e := posts.NewEditor(s)
	assert.Equal(t, posts.Idle, e.State())

	require.NoError(t, e.Add())
	assert.Equal(t, posts.Drafting, e.State())
	assert.Equal(t, posts.Fields{}, e.Draft(), "add starts empty")
	_, editing := e.Target()
	assert.False(t, editing)

	require.NoError(t, e.SetDraft(posts.Fields{Title: "New", Author: "Me"}))
	p, err := e.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.ID)
	assert.Equal(t, "New", p.Title)
	assert.Equal(t, posts.Idle, e.State())

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, list[0])
}

func TestEditorEditSaveUpdates(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	e := posts.NewEditor(s)

	require.NoError(t, e.Edit(ctx, 2))
	assert.Equal(t, posts.DefaultSeed()[1].Fields(), e.Draft(), "edit preloads the post")
	id, editing := e.Target()
	assert.True(t, editing)
	assert.Equal(t, int64(2), id)

	draft := e.Draft()
	draft.Title = "Edited"
	require.NoError(t, e.SetDraft(draft))
	p, err := e.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ID)
	assert.Equal(t, "Edited", p.Title)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, p, list[1])
}

func TestEditorCancelLeavesStore(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	e := posts.NewEditor(s)

	require.NoError(t, e.Edit(ctx, 1))
	require.NoError(t, e.SetDraft(posts.Fields{Title: "discarded"}))
	require.NoError(t, e.Cancel())
	assert.Equal(t, posts.Idle, e.State())
	assert.Equal(t, posts.Fields{}, e.Draft())

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, posts.DefaultSeed(), list)
}

func TestEditorTransitionErrors(t *testing.T) {
	ctx := context.Background()
	e := posts.NewEditor(seededStore(t))

	_, err := e.Save(ctx)
	assert.ErrorIs(t, err, posts.ErrNoDraft)
	assert.ErrorIs(t, e.Cancel(), posts.ErrNoDraft)
	assert.ErrorIs(t, e.SetDraft(posts.Fields{}), posts.ErrNoDraft)

	assert.ErrorIs(t, e.Edit(ctx, 99), posts.ErrNotFound)
	assert.Equal(t, posts.Idle, e.State(), "unknown id leaves the editor idle")

	require.NoError(t, e.Add())
	assert.ErrorIs(t, e.Add(), posts.ErrDraftActive)
	assert.ErrorIs(t, e.Edit(ctx, 1), posts.ErrDraftActive)
	assert.Equal(t, posts.Drafting, e.State())
}

func TestEditorSaveFailureKeepsDraft(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	e := posts.NewEditor(s)

	require.NoError(t, e.Edit(ctx, 3))
	require.NoError(t, s.Delete(ctx, 3))

	_, err := e.Save(ctx)
	assert.ErrorIs(t, err, posts.ErrNotFound)
	assert.Equal(t, posts.Drafting, e.State())
	require.NoError(t, e.Cancel())
}

func TestEditorStateString(t *testing.T) {
	assert.Equal(t, "idle", posts.Idle.String())
	assert.Equal(t, "drafting", posts.Drafting.String())
	assert.Equal(t, "unknown", posts.EditorState(7).String())
}
