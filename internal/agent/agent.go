// Package agent defines the execution contract every specialized handler
// implements, plus the concrete agents: memory, navigator, analyst, and the
// general fallback. Agents are pure with respect to durable state; they read
// from the memory store and return proposed actions, never applying effects
// themselves.
package agent

import (
	"context"
	"time"

	"github.com/annai-ai/annai/internal/cache"
	"github.com/annai-ai/annai/internal/memory"
	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/router"
	"github.com/annai-ai/annai/internal/tool"
)

// Descriptor is an agent's static self-description. RateLimit is requests
// per minute per owner; zero means the orchestrator default applies.
type Descriptor struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	Capabilities      []string      `json:"capabilities"`
	RateLimit         int           `json:"rate_limit"`
	SafetyTier        string        `json:"safety_tier"`
	CanProduceActions bool          `json:"can_produce_actions"`
	RequiresContext   bool          `json:"requires_context"`
	Timeout           time.Duration `json:"timeout"`
}

// Safety tiers. Read-only agents answer without proposing effects; write
// agents may return action drafts.
const (
	TierReadOnly = "read-only"
	TierWrite    = "write"
)

// ResultCache memoizes derived results between requests.
type ResultCache = cache.Cache[map[string]any]

// Context is the per-request view the orchestrator assembles for an agent.
// Explicit and versionless: an agent gets exactly these collaborators.
type Context struct {
	Memories   *memory.Store
	Cache      *ResultCache
	Tools      *tool.Registry
	Intent     router.Intent
	Candidates []router.Candidate
}

// Agent is the contract every handler implements. CanHandle is a cheap
// pre-filter for direct-invocation paths that bypass routing; Process does
// the work and runs under the executor's tracking wrapper.
type Agent interface {
	Descriptor() Descriptor
	CanHandle(req model.AgentRequest) bool
	Process(ctx context.Context, req model.AgentRequest, rctx *Context) (model.AgentResult, error)
}
