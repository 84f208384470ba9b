// Package orchestrator drives the request lifecycle: validate, rate limit,
// route, execute, finalize proposed actions. It is the composition point for
// every subsystem and the only code that turns an agent's proposals into
// registered drafts.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/annai-ai/annai/internal/action"
	"github.com/annai-ai/annai/internal/agent"
	"github.com/annai-ai/annai/internal/bus"
	"github.com/annai-ai/annai/internal/memory"
	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/ratelimit"
	"github.com/annai-ai/annai/internal/router"
	"github.com/annai-ai/annai/internal/schema"
	"github.com/annai-ai/annai/internal/tool"
)

var askSchema = schema.Schema{
	Kind: schema.KindObject,
	Properties: map[string]schema.Schema{
		"prompt":     {Kind: schema.KindString, Required: true, Min: schema.Bound(1), Max: schema.Bound(model.MaxPromptLen)},
		"session_id": {Kind: schema.KindString, Max: schema.Bound(model.MaxSessionIDLen)},
	},
}

// Deps are the collaborators an Orchestrator composes. All are required
// except Limiter, which defaults to unlimited.
type Deps struct {
	Bus      *bus.Bus
	Router   *router.Router
	Executor *agent.Executor
	Drafts   *action.Manager
	Memories *memory.Store
	Cache    *agent.ResultCache
	Tools    *tool.Registry
	Limiter  ratelimit.Limiter
	Logger   *slog.Logger
}

// Orchestrator owns the request state machine:
// received → validating → routed → executing → terminal.
type Orchestrator struct {
	deps Deps

	mu     sync.RWMutex
	agents map[string]agent.Agent
}

// New creates an orchestrator with no agents registered.
func New(deps Deps) *Orchestrator {
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NoopLimiter{}
	}
	return &Orchestrator{deps: deps, agents: make(map[string]agent.Agent)}
}

// Register adds an agent under its descriptor ID, replacing any previous
// registration.
func (o *Orchestrator) Register(a agent.Agent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.agents[a.Descriptor().ID] = a
}

// Agents returns the registered descriptors.
func (o *Orchestrator) Agents() []agent.Descriptor {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]agent.Descriptor, 0, len(o.agents))
	for _, a := range o.agents {
		out = append(out, a.Descriptor())
	}
	return out
}

// Ask processes one request end to end and always returns a structured
// result; failures are results with an error kind, never errors.
func (o *Orchestrator) Ask(ctx context.Context, ask model.AskRequest) model.AgentResult {
	req := model.AgentRequest{
		ID:        uuid.New(),
		OwnerID:   ask.OwnerID,
		Prompt:    ask.Prompt,
		SessionID: ask.SessionID,
		Options:   ask.Options,
	}
	o.deps.Bus.Emit(model.EventRequestReceived, map[string]any{
		"request_id": req.ID.String(),
		"owner_id":   req.OwnerID,
	})

	if res := schema.Validate(map[string]any{
		"prompt":     ask.Prompt,
		"session_id": ask.SessionID,
	}, askSchema); !res.Valid {
		o.deps.Bus.Emit(model.EventRequestRejected, map[string]any{
			"request_id": req.ID.String(),
			"reason":     model.ErrKindValidation,
		})
		return o.rejected(model.ErrKindValidation,
			fmt.Sprintf("invalid request: %s at %q", res.Errors[0].Message, res.Errors[0].Path))
	}

	candidates := o.deps.Router.Route(req.Prompt)
	intent := o.deps.Router.AnalyzeIntent(req.Prompt)
	top := candidates[0]

	o.mu.RLock()
	selected, ok := o.agents[top.AgentID]
	o.mu.RUnlock()
	if !ok {
		o.deps.Bus.Emit(model.EventRequestRejected, map[string]any{
			"request_id": req.ID.String(),
			"reason":     model.ErrKindNoAgent,
		})
		return o.rejected(model.ErrKindNoAgent,
			fmt.Sprintf("no agent registered for %q", top.AgentID))
	}

	allowed, err := o.deps.Limiter.Allow(ctx, req.OwnerID+":"+top.AgentID)
	if err != nil {
		// Limiter malfunction fails open.
		o.deps.Logger.Warn("orchestrator: limiter error", "error", err)
		allowed = true
	}
	if !allowed {
		o.deps.Bus.Emit(model.EventRequestRejected, map[string]any{
			"request_id": req.ID.String(),
			"reason":     model.ErrKindRateLimited,
		})
		return o.rejected(model.ErrKindRateLimited, "too many requests for this agent, slow down")
	}

	o.deps.Bus.Emit(model.EventRequestRouted, map[string]any{
		"request_id": req.ID.String(),
		"agent_id":   top.AgentID,
		"score":      top.Score,
		"intent":     intent.Primary,
	})

	rctx := &agent.Context{
		Memories:   o.deps.Memories,
		Cache:      o.deps.Cache,
		Tools:      o.deps.Tools,
		Intent:     intent,
		Candidates: candidates,
	}
	result := o.deps.Executor.Execute(ctx, selected, req, rctx)

	result.ActionDrafts = o.finalizeDrafts(ctx, req.OwnerID, &result)
	return result
}

// finalizeDrafts registers each proposed draft, auto-applying the ones that
// don't require confirmation. Auto-applies go through the same single-use
// token path as everything else so the audit trail is uniform.
func (o *Orchestrator) finalizeDrafts(ctx context.Context, ownerID string, result *model.AgentResult) []model.ActionDraft {
	if len(result.ActionDrafts) == 0 {
		return nil
	}

	out := make([]model.ActionDraft, 0, len(result.ActionDrafts))
	var applied []map[string]any
	for _, proposal := range result.ActionDrafts {
		draft, err := o.deps.Drafts.CreateDraft(ownerID, proposal)
		if err != nil {
			o.deps.Logger.Warn("orchestrator: dropping invalid draft proposal",
				"kind", proposal.Kind, "error", err)
			continue
		}

		if !draft.RequiresConfirmation {
			outcome := o.deps.Drafts.Redeem(ctx, draft.Token, ownerID, true)
			draft.Token = ""
			entry := map[string]any{
				"kind":    string(draft.Kind),
				"applied": outcome.Applied,
			}
			if outcome.ErrorKind != "" {
				entry["error_kind"] = outcome.ErrorKind
			}
			if outcome.Result != nil {
				entry["result"] = outcome.Result
			}
			applied = append(applied, entry)
		}
		out = append(out, draft)
	}

	if applied != nil {
		if result.Metadata == nil {
			result.Metadata = map[string]any{}
		}
		result.Metadata["auto_applied"] = applied
	}
	return out
}

// Confirm redeems a confirmation token on behalf of ownerID.
func (o *Orchestrator) Confirm(ctx context.Context, token, ownerID string, approve bool) model.RedemptionOutcome {
	return o.deps.Drafts.Redeem(ctx, token, ownerID, approve)
}

// Diagnostics returns the read-only operational snapshot.
func (o *Orchestrator) Diagnostics(filter bus.HistoryFilter) model.DiagnosticsSnapshot {
	cacheStats := o.deps.Cache.Stats()
	routerStats := o.deps.Router.Stats()

	toolStats := make(map[string]any)
	for id, usage := range o.deps.Tools.Stats() {
		toolStats[id] = usage
	}

	return model.DiagnosticsSnapshot{
		Events: o.deps.Bus.History(filter),
		CacheStats: map[string]any{
			"hits":     cacheStats.Hits,
			"misses":   cacheStats.Misses,
			"hit_rate": cacheStats.HitRate,
			"size":     cacheStats.Size,
			"max_size": cacheStats.MaxSize,
		},
		RouterStats: map[string]any{
			"triggers_per_agent": routerStats.Triggers,
			"fallback":           routerStats.Fallback,
			"requests_routed":    routerStats.Routed,
		},
		ToolStats:  toolStats,
		DraftsOpen: o.deps.Drafts.Open(),
	}
}

func (o *Orchestrator) rejected(kind, message string) model.AgentResult {
	return model.AgentResult{
		Message:   message,
		ErrorKind: kind,
		Provenance: model.Provenance{
			AgentID:   "orchestrator",
			Operation: "dispatch",
			Status:    model.StatusFailed,
			Timestamp: time.Now().UTC(),
		},
	}
}
