package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annai-ai/annai/internal/action"
	"github.com/annai-ai/annai/internal/agent"
	"github.com/annai-ai/annai/internal/bus"
	"github.com/annai-ai/annai/internal/cache"
	"github.com/annai-ai/annai/internal/memory"
	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/ratelimit"
	"github.com/annai-ai/annai/internal/router"
	"github.com/annai-ai/annai/internal/store"
	"github.com/annai-ai/annai/internal/testutil"
	"github.com/annai-ai/annai/internal/tool"
)

type world struct {
	orch     *Orchestrator
	bus      *bus.Bus
	memories *memory.Store
	records  *store.MemStore
	drafts   *action.Manager
}

func newWorld(t *testing.T, limiter ratelimit.Limiter) *world {
	t.Helper()
	logger := testutil.TestLogger()
	b := bus.New(logger, 200)
	memories := memory.NewStore(b)
	records := store.NewMemStore()
	tools := tool.NewRegistry(b)
	tool.RegisterBuiltins(tools)
	drafts := action.NewManager(b, records, memories, time.Minute, logger)
	t.Cleanup(drafts.Close)

	o := New(Deps{
		Bus:      b,
		Router:   router.New(router.DefaultTriggers(), router.AgentGeneral),
		Executor: agent.NewExecutor(b, time.Second, logger),
		Drafts:   drafts,
		Memories: memories,
		Cache:    cache.New[map[string]any]("results", 100, time.Minute),
		Tools:    tools,
		Limiter:  limiter,
		Logger:   logger,
	})
	o.Register(agent.NewMemoryAgent())
	o.Register(agent.NewNavigatorAgent())
	o.Register(agent.NewAnalystAgent())
	o.Register(agent.NewGeneralAgent())

	return &world{orch: o, bus: b, memories: memories, records: records, drafts: drafts}
}

func ask(prompt string) model.AskRequest {
	return model.AskRequest{OwnerID: "alice", Prompt: prompt}
}

func TestAsk_RoutesToMemoryAgent(t *testing.T) {
	w := newWorld(t, nil)

	res := w.orch.Ask(context.Background(), ask("Remember that the meeting is at 3pm"))
	assert.Empty(t, res.ErrorKind)
	assert.Equal(t, router.AgentMemory, res.Provenance.AgentID)
	assert.Equal(t, model.StatusSucceeded, res.Provenance.Status)
	assert.Equal(t, 1, w.memories.Summary("alice").TotalItems)
}

func TestAsk_FallsBackToGeneral(t *testing.T) {
	w := newWorld(t, nil)

	res := w.orch.Ask(context.Background(), ask("the sky is blue"))
	assert.Equal(t, router.AgentGeneral, res.Provenance.AgentID)
}

func TestAsk_RejectsEmptyPrompt(t *testing.T) {
	w := newWorld(t, nil)

	res := w.orch.Ask(context.Background(), ask(""))
	assert.Equal(t, model.ErrKindValidation, res.ErrorKind)
	assert.Equal(t, model.StatusFailed, res.Provenance.Status)
	assert.Len(t, w.bus.History(bus.HistoryFilter{Event: model.EventRequestRejected}), 1)
}

func TestAsk_RejectsOversizedPrompt(t *testing.T) {
	w := newWorld(t, nil)

	res := w.orch.Ask(context.Background(), ask(strings.Repeat("a", model.MaxPromptLen+1)))
	assert.Equal(t, model.ErrKindValidation, res.ErrorKind)
}

func TestAsk_RateLimitPerOwnerAndAgent(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 1)
	t.Cleanup(func() { _ = limiter.Close() })
	w := newWorld(t, limiter)
	ctx := context.Background()

	first := w.orch.Ask(ctx, ask("go to the settings page"))
	assert.Empty(t, first.ErrorKind)

	second := w.orch.Ask(ctx, ask("go to the settings page"))
	assert.Equal(t, model.ErrKindRateLimited, second.ErrorKind)

	// A different agent for the same owner has its own budget.
	third := w.orch.Ask(ctx, ask("remember that I like tea"))
	assert.Empty(t, third.ErrorKind)
}

func TestAsk_ForgetFlowEndToEnd(t *testing.T) {
	w := newWorld(t, nil)
	ctx := context.Background()

	w.orch.Ask(ctx, ask("Remember that the wifi password is hunter2"))
	require.Equal(t, 1, w.memories.Summary("alice").TotalItems)

	res := w.orch.Ask(ctx, ask("forget the wifi password"))
	require.Len(t, res.ActionDrafts, 1)
	draft := res.ActionDrafts[0]
	require.NotEmpty(t, draft.Token)

	outcome := w.orch.Confirm(ctx, draft.Token, "alice", true)
	require.True(t, outcome.Applied)
	assert.Equal(t, 0, w.memories.Summary("alice").TotalItems)

	// The token is spent.
	again := w.orch.Confirm(ctx, draft.Token, "alice", true)
	assert.Equal(t, model.ErrKindUnknownToken, again.ErrorKind)
}

func TestAsk_BookmarkAutoApplies(t *testing.T) {
	w := newWorld(t, nil)
	ctx := context.Background()

	res := w.orch.Ask(ctx, ask("bookmark the quarterly report"))
	require.Len(t, res.ActionDrafts, 1)
	// Auto-applied drafts come back without a redeemable token.
	assert.Empty(t, res.ActionDrafts[0].Token)

	applied, ok := res.Metadata["auto_applied"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, applied, 1)
	assert.Equal(t, true, applied[0]["applied"])

	recs, err := w.records.Query(ctx, "alice", "bookmarks", store.Filter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, 0, w.drafts.Open())
}

func TestConfirm_OwnerScoped(t *testing.T) {
	w := newWorld(t, nil)
	ctx := context.Background()

	w.orch.Ask(ctx, ask("Remember that my cat is named Miso"))
	res := w.orch.Ask(ctx, ask("forget my cat"))
	require.Len(t, res.ActionDrafts, 1)

	outcome := w.orch.Confirm(ctx, res.ActionDrafts[0].Token, "mallory", true)
	assert.Equal(t, model.ErrKindUnknownToken, outcome.ErrorKind)
	assert.Equal(t, 1, w.memories.Summary("alice").TotalItems)
}

func TestDiagnostics_Snapshot(t *testing.T) {
	w := newWorld(t, nil)
	ctx := context.Background()

	w.orch.Ask(ctx, ask("how many memories do I have?"))
	snap := w.orch.Diagnostics(bus.HistoryFilter{})

	assert.NotEmpty(t, snap.Events)
	assert.Equal(t, int64(1), snap.RouterStats["requests_routed"])
	assert.Contains(t, snap.ToolStats, "text.wordcount")
	assert.Equal(t, 0, snap.DraftsOpen)
}

func TestAsk_TimeoutSurfacesAsResult(t *testing.T) {
	w := newWorld(t, nil)
	w.orch.Register(&slowAgent{})

	res := w.orch.Ask(context.Background(), ask("the sky is blue"))
	assert.Equal(t, model.ErrKindAgentTimeout, res.ErrorKind)
	assert.Equal(t, model.StatusTimedOut, res.Provenance.Status)
}

// slowAgent replaces the general agent with one that never returns in time.
type slowAgent struct{}

func (s *slowAgent) Descriptor() agent.Descriptor {
	return agent.Descriptor{ID: router.AgentGeneral, Timeout: 20 * time.Millisecond}
}
func (s *slowAgent) CanHandle(model.AgentRequest) bool { return true }
func (s *slowAgent) Process(ctx context.Context, _ model.AgentRequest, _ *agent.Context) (model.AgentResult, error) {
	<-ctx.Done()
	return model.AgentResult{}, ctx.Err()
}
