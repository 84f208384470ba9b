package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annai-ai/annai/internal/bus"
	"github.com/annai-ai/annai/internal/cache"
	"github.com/annai-ai/annai/internal/memory"
	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/router"
	"github.com/annai-ai/annai/internal/testutil"
	"github.com/annai-ai/annai/internal/tool"
)

func newContext(t *testing.T) *Context {
	t.Helper()
	b := bus.New(testutil.TestLogger(), 100)
	tools := tool.NewRegistry(b)
	tool.RegisterBuiltins(tools)
	return &Context{
		Memories: memory.NewStore(b),
		Cache:    cache.New[map[string]any]("results", 100, time.Minute),
		Tools:    tools,
	}
}

func TestMemoryAgent_Remember(t *testing.T) {
	rctx := newContext(t)
	a := NewMemoryAgent()

	res, err := a.Process(context.Background(), testRequest("Remember that the meeting is at 3pm"), rctx)
	require.NoError(t, err)
	assert.Contains(t, res.Message, "remember")
	assert.Equal(t, 1, rctx.Memories.Summary("alice").TotalItems)
}

func TestMemoryAgent_Recall(t *testing.T) {
	rctx := newContext(t)
	rctx.Memories.Add("alice", "the meeting is at 3pm", "", nil)
	a := NewMemoryAgent()

	res, err := a.Process(context.Background(), testRequest("recall the meeting"), rctx)
	require.NoError(t, err)
	assert.Contains(t, res.Message, "the meeting is at 3pm")
	require.NotEmpty(t, res.Insights)
}

func TestMemoryAgent_ForgetProposesDraft(t *testing.T) {
	rctx := newContext(t)
	rctx.Memories.Add("alice", "old wifi password is hunter2", "", nil)
	a := NewMemoryAgent()

	res, err := a.Process(context.Background(), testRequest("forget the old wifi password"), rctx)
	require.NoError(t, err)
	require.Len(t, res.ActionDrafts, 1)
	draft := res.ActionDrafts[0]
	assert.Equal(t, model.DraftMemoryForget, draft.Kind)
	assert.True(t, draft.RequiresConfirmation)
	// Proposal only: nothing deleted until the draft is redeemed.
	assert.Equal(t, 1, rctx.Memories.Summary("alice").TotalItems)
}

func TestMemoryAgent_CanHandle(t *testing.T) {
	a := NewMemoryAgent()
	assert.True(t, a.CanHandle(testRequest("remember my birthday")))
	assert.True(t, a.CanHandle(testRequest("what did I say yesterday")))
	assert.False(t, a.CanHandle(testRequest("open the settings")))
}

func TestNavigatorAgent_KnownPage(t *testing.T) {
	a := NewNavigatorAgent()
	res, err := a.Process(context.Background(), testRequest("go to the automations page"), newContext(t))
	require.NoError(t, err)
	assert.Equal(t, "/automations", res.Metadata["navigate_to"])
}

func TestNavigatorAgent_UnknownPage(t *testing.T) {
	a := NewNavigatorAgent()
	res, err := a.Process(context.Background(), testRequest("go to the blorp page"), newContext(t))
	require.NoError(t, err)
	assert.Contains(t, res.Message, "Available pages")
	assert.Less(t, res.Confidence, 0.5)
}

func TestNavigatorAgent_BookmarkDraftAutoApplies(t *testing.T) {
	a := NewNavigatorAgent()
	res, err := a.Process(context.Background(), testRequest("bookmark the standup notes"), newContext(t))
	require.NoError(t, err)
	require.Len(t, res.ActionDrafts, 1)
	assert.Equal(t, model.DraftRecordCreate, res.ActionDrafts[0].Kind)
	assert.False(t, res.ActionDrafts[0].RequiresConfirmation)
}

func TestAnalystAgent_Breakdown(t *testing.T) {
	rctx := newContext(t)
	rctx.Memories.Add("alice", "paris is the capital of france", model.CategoryFact, nil)
	rctx.Memories.Add("alice", "berlin is the capital of germany", model.CategoryFact, nil)
	rctx.Memories.Add("alice", "always use oat milk", model.CategoryPreference, nil)
	a := NewAnalystAgent()

	res, err := a.Process(context.Background(), testRequest("how many memories do I have?"), rctx)
	require.NoError(t, err)
	assert.Contains(t, res.Message, "3 memories")
	assert.Contains(t, res.Message, "2 fact")
	assert.Contains(t, res.Message, "1 preference")
}

func TestAnalystAgent_MemoizesBreakdown(t *testing.T) {
	rctx := newContext(t)
	rctx.Memories.Add("alice", "one thing", model.CategoryFact, nil)
	a := NewAnalystAgent()

	_, err := a.Process(context.Background(), testRequest("count my memories"), rctx)
	require.NoError(t, err)

	// A second request within the cache TTL sees the memoized breakdown
	// even though the store changed underneath.
	rctx.Memories.Add("alice", "another thing", model.CategoryFact, nil)
	res, err := a.Process(context.Background(), testRequest("count my memories"), rctx)
	require.NoError(t, err)
	assert.Contains(t, res.Message, "1 memories")
	assert.Greater(t, rctx.Cache.Stats().Hits, int64(0))
}

func TestAnalystAgent_EmptyStore(t *testing.T) {
	a := NewAnalystAgent()
	res, err := a.Process(context.Background(), testRequest("summarize everything"), newContext(t))
	require.NoError(t, err)
	assert.Contains(t, res.Message, "nothing")
}

func TestGeneralAgent_TimeQuestion(t *testing.T) {
	a := NewGeneralAgent()
	res, err := a.Process(context.Background(), testRequest("what time is it?"), newContext(t))
	require.NoError(t, err)
	assert.Contains(t, res.Message, "right now")
}

func TestGeneralAgent_Fallback(t *testing.T) {
	a := NewGeneralAgent()
	rctx := newContext(t)
	rctx.Intent = router.Intent{Primary: router.IntentStatement}
	res, err := a.Process(context.Background(), testRequest("the weather is nice"), rctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Confidence, 0.3)
	assert.True(t, a.CanHandle(testRequest("anything at all")))
}
