package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/annai-ai/annai/internal/memory"
	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/router"
)

var (
	rememberPattern = regexp.MustCompile(`(?i)^\s*remember\s+(that\s+)?(.+)$`)
	forgetPattern   = regexp.MustCompile(`(?i)^\s*forget\s+(about\s+|that\s+)?(.+)$`)
	memoryTrigger   = regexp.MustCompile(`(?i)\b(remember|recall|forget|memor(y|ies)|what did i)\b`)
)

// MemoryAgent handles remember / recall / forget. Remember writes the memory
// store directly (process-local, reversible via forget); forget proposes a
// confirmation draft because deletion is destructive.
type MemoryAgent struct{}

func NewMemoryAgent() *MemoryAgent { return &MemoryAgent{} }

func (a *MemoryAgent) Descriptor() Descriptor {
	return Descriptor{
		ID:                router.AgentMemory,
		Name:              "Memory",
		Description:       "Stores, recalls, and forgets personal memories.",
		Capabilities:      []string{"remember", "recall", "forget"},
		SafetyTier:        TierWrite,
		CanProduceActions: true,
		RequiresContext:   true,
	}
}

func (a *MemoryAgent) CanHandle(req model.AgentRequest) bool {
	return memoryTrigger.MatchString(req.Prompt)
}

func (a *MemoryAgent) Process(_ context.Context, req model.AgentRequest, rctx *Context) (model.AgentResult, error) {
	if m := rememberPattern.FindStringSubmatch(req.Prompt); m != nil {
		return a.remember(req, rctx, strings.TrimSpace(m[2]))
	}
	if m := forgetPattern.FindStringSubmatch(req.Prompt); m != nil {
		return a.forget(req, rctx, strings.TrimSpace(m[2]))
	}
	return a.recall(req, rctx)
}

func (a *MemoryAgent) remember(req model.AgentRequest, rctx *Context, content string) (model.AgentResult, error) {
	if content == "" {
		return model.AgentResult{
			Message:    "tell me what to remember",
			Confidence: 0.4,
		}, nil
	}
	item := rctx.Memories.Add(req.OwnerID, content, "", map[string]any{"session_id": req.SessionID})
	return model.AgentResult{
		Message:    fmt.Sprintf("Got it, I'll remember that (filed under %s).", item.Category),
		Confidence: 0.9,
		Metadata:   map[string]any{"memory_id": item.ID.String(), "category": string(item.Category)},
	}, nil
}

func (a *MemoryAgent) forget(req model.AgentRequest, rctx *Context, text string) (model.AgentResult, error) {
	matches := rctx.Memories.Query(memory.QueryParams{OwnerID: req.OwnerID, Text: text, Limit: 3})
	if len(matches) == 0 {
		return model.AgentResult{
			Message:    "I couldn't find a memory matching that.",
			Confidence: 0.5,
		}, nil
	}

	drafts := make([]model.ActionDraft, 0, len(matches))
	for _, item := range matches {
		drafts = append(drafts, model.ActionDraft{
			Kind:                 model.DraftMemoryForget,
			Title:                "Forget a memory",
			Description:          fmt.Sprintf("Delete the memory %q", item.Content),
			Payload:              map[string]any{"memory_id": item.ID.String()},
			RequiresConfirmation: true,
		})
	}
	return model.AgentResult{
		Message:      fmt.Sprintf("I found %d matching memor%s; confirm which to forget.", len(matches), pluralIES(len(matches))),
		Confidence:   0.8,
		ActionDrafts: drafts,
	}, nil
}

func (a *MemoryAgent) recall(req model.AgentRequest, rctx *Context) (model.AgentResult, error) {
	text := memoryTrigger.ReplaceAllString(req.Prompt, "")
	items := rctx.Memories.Query(memory.QueryParams{OwnerID: req.OwnerID, Text: text, Limit: 5})
	if len(items) == 0 {
		return model.AgentResult{
			Message:    "I don't have any memories matching that yet.",
			Confidence: 0.5,
		}, nil
	}

	var b strings.Builder
	b.WriteString("Here's what I remember:")
	insights := make([]model.Insight, 0, len(items))
	for _, item := range items {
		fmt.Fprintf(&b, "\n- %s", item.Content)
		insights = append(insights, model.Insight{
			Kind:    "memory",
			Content: item.Content,
			Score:   item.Importance,
		})
	}
	return model.AgentResult{
		Message:    b.String(),
		Confidence: 0.85,
		Insights:   insights,
	}, nil
}

func pluralIES(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
