package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annai-ai/annai/internal/store"
	"github.com/annai-ai/annai/internal/testutil"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	tc := testutil.MustStartPostgres()
	defer tc.Terminate()

	ctx := context.Background()
	s, err := store.NewPostgres(ctx, tc.DSN)
	require.NoError(t, err)
	defer func() { _ = s.Close(ctx) }()

	rec, err := s.Create(ctx, "alice", "tasks", map[string]any{"status": "open", "title": "a"})
	require.NoError(t, err)

	got, err := s.Query(ctx, "alice", "tasks", store.Filter{Fields: map[string]any{"status": "open"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)

	updated, err := s.Update(ctx, "alice", "tasks", rec.ID, map[string]any{"status": "done"})
	require.NoError(t, err)
	assert.Equal(t, "done", updated.Data["status"])
	assert.Equal(t, "a", updated.Data["title"])

	_, err = s.Update(ctx, "bob", "tasks", rec.ID, map[string]any{"status": "hijacked"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "alice", "tasks", rec.ID))
	assert.ErrorIs(t, s.Delete(ctx, "alice", "tasks", rec.ID), store.ErrNotFound)
}
