package action

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annai-ai/annai/internal/bus"
	"github.com/annai-ai/annai/internal/memory"
	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/store"
	"github.com/annai-ai/annai/internal/testutil"
)

type fixture struct {
	manager  *Manager
	bus      *bus.Bus
	records  *store.MemStore
	memories *memory.Store
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	b := bus.New(testutil.TestLogger(), 100)
	records := store.NewMemStore()
	memories := memory.NewStore(b)
	m := NewManager(b, records, memories, ttl, testutil.TestLogger())
	t.Cleanup(m.Close)
	return &fixture{manager: m, bus: b, records: records, memories: memories}
}

func createProposal() model.ActionDraft {
	return model.ActionDraft{
		Kind:                 model.DraftRecordCreate,
		Title:                "Add bookmark",
		Payload:              map[string]any{"table": "bookmarks", "data": map[string]any{"url": "https://example.com"}},
		RequiresConfirmation: true,
	}
}

func TestCreateDraft_IssuesToken(t *testing.T) {
	f := newFixture(t, time.Minute)

	draft, err := f.manager.CreateDraft("alice", createProposal())
	require.NoError(t, err)
	assert.NotEmpty(t, draft.Token)
	assert.Equal(t, "alice", draft.OwnerID)
	assert.True(t, draft.ExpiresAt.After(draft.CreatedAt))
	assert.Equal(t, 1, f.manager.Open())
}

func TestCreateDraft_RejectsUnknownKind(t *testing.T) {
	f := newFixture(t, time.Minute)
	_, err := f.manager.CreateDraft("alice", model.ActionDraft{Kind: "record.truncate"})
	assert.Error(t, err)
}

func TestCreateDraft_ValidatesPayload(t *testing.T) {
	f := newFixture(t, time.Minute)
	_, err := f.manager.CreateDraft("alice", model.ActionDraft{
		Kind:    model.DraftRecordCreate,
		Payload: map[string]any{"data": map[string]any{}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table")
}

func TestRedeem_AppliesExactlyOnce(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	draft, err := f.manager.CreateDraft("alice", createProposal())
	require.NoError(t, err)

	first := f.manager.Redeem(ctx, draft.Token, "alice", true)
	require.True(t, first.Applied)
	require.Empty(t, first.ErrorKind)

	second := f.manager.Redeem(ctx, draft.Token, "alice", true)
	assert.False(t, second.Applied)
	assert.Equal(t, model.ErrKindUnknownToken, second.ErrorKind)

	recs, err := f.records.Query(ctx, "alice", "bookmarks", store.Filter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRedeem_UnknownToken(t *testing.T) {
	f := newFixture(t, time.Minute)
	out := f.manager.Redeem(context.Background(), "no-such-token", "alice", true)
	assert.Equal(t, model.ErrKindUnknownToken, out.ErrorKind)
}

func TestRedeem_WrongOwnerReadsAsUnknown(t *testing.T) {
	f := newFixture(t, time.Minute)
	draft, err := f.manager.CreateDraft("alice", createProposal())
	require.NoError(t, err)

	out := f.manager.Redeem(context.Background(), draft.Token, "bob", true)
	assert.Equal(t, model.ErrKindUnknownToken, out.ErrorKind)
	// The draft survives for its rightful owner.
	assert.Equal(t, 1, f.manager.Open())
}

func TestRedeem_ExpiredRegardlessOfApprove(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	draft, err := f.manager.CreateDraft("alice", createProposal())
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	out := f.manager.Redeem(context.Background(), draft.Token, "alice", true)
	assert.Equal(t, model.ErrKindExpiredToken, out.ErrorKind)
	assert.Equal(t, 0, f.manager.Open())

	// Same answer on a decline of a second expired draft.
	draft2, err := f.manager.CreateDraft("alice", createProposal())
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	out = f.manager.Redeem(context.Background(), draft2.Token, "alice", false)
	assert.Equal(t, model.ErrKindExpiredToken, out.ErrorKind)
}

func TestRedeem_DeclineDoesNotApply(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	draft, err := f.manager.CreateDraft("alice", createProposal())
	require.NoError(t, err)

	out := f.manager.Redeem(ctx, draft.Token, "alice", false)
	assert.False(t, out.Applied)
	assert.Empty(t, out.ErrorKind)

	recs, err := f.records.Query(ctx, "alice", "bookmarks", store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, recs)

	// Declined tokens are consumed too.
	out = f.manager.Redeem(ctx, draft.Token, "alice", true)
	assert.Equal(t, model.ErrKindUnknownToken, out.ErrorKind)
}

func TestRedeem_ApplyFailureIsNotRetryable(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	draft, err := f.manager.CreateDraft("alice", model.ActionDraft{
		Kind:    model.DraftRecordDelete,
		Payload: map[string]any{"table": "tasks", "id": "1b4e28ba-2fa1-11d2-883f-0016d3cca427"},
	})
	require.NoError(t, err)

	out := f.manager.Redeem(ctx, draft.Token, "alice", true)
	assert.Equal(t, model.ErrKindApplyFailed, out.ErrorKind)

	out = f.manager.Redeem(ctx, draft.Token, "alice", true)
	assert.Equal(t, model.ErrKindUnknownToken, out.ErrorKind)
}

func TestRedeem_MemoryForget(t *testing.T) {
	f := newFixture(t, time.Minute)
	item := f.memories.Add("alice", "likes dark roast", model.CategoryPreference, nil)

	draft, err := f.manager.CreateDraft("alice", model.ActionDraft{
		Kind:    model.DraftMemoryForget,
		Payload: map[string]any{"memory_id": item.ID.String()},
	})
	require.NoError(t, err)

	out := f.manager.Redeem(context.Background(), draft.Token, "alice", true)
	require.True(t, out.Applied)
	assert.Zero(t, f.memories.Summary("alice").TotalItems)
}

func TestSweep_PurgesExpired(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	_, err := f.manager.CreateDraft("alice", createProposal())
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	f.manager.sweep()
	assert.Equal(t, 0, f.manager.Open())

	history := f.bus.History(bus.HistoryFilter{Event: model.EventActionExpired})
	assert.Len(t, history, 1)
}

func TestExpire_Cancels(t *testing.T) {
	f := newFixture(t, time.Minute)
	draft, err := f.manager.CreateDraft("alice", createProposal())
	require.NoError(t, err)

	assert.True(t, f.manager.Expire(draft.Token, "alice"))
	assert.False(t, f.manager.Expire(draft.Token, "alice"))

	out := f.manager.Redeem(context.Background(), draft.Token, "alice", true)
	assert.Equal(t, model.ErrKindUnknownToken, out.ErrorKind)
}
