package agent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/router"
)

var analystTrigger = regexp.MustCompile(`(?i)\b(analy[sz]e|summari[sz]e|compare|count|total|sum|average|how many|how much|trend|statistic|breakdown|report)\b`)

// AnalystAgent answers counting and summary questions over the owner's
// memories. Derived breakdowns are memoized in the result cache; the word
// count path exercises the tool registry rather than inlining the logic.
type AnalystAgent struct{}

func NewAnalystAgent() *AnalystAgent { return &AnalystAgent{} }

func (a *AnalystAgent) Descriptor() Descriptor {
	return Descriptor{
		ID:              router.AgentAnalyst,
		Name:            "Analyst",
		Description:     "Counts, summarizes, and reports over stored memories.",
		Capabilities:    []string{"count", "summarize", "breakdown"},
		SafetyTier:      TierReadOnly,
		RequiresContext: true,
	}
}

func (a *AnalystAgent) CanHandle(req model.AgentRequest) bool {
	return analystTrigger.MatchString(req.Prompt)
}

func (a *AnalystAgent) Process(_ context.Context, req model.AgentRequest, rctx *Context) (model.AgentResult, error) {
	breakdown := a.breakdown(req.OwnerID, rctx)

	total, _ := breakdown["total"].(int)
	if total == 0 {
		return model.AgentResult{
			Message:    "There's nothing stored yet, so there's nothing to analyze.",
			Confidence: 0.6,
			Metadata:   breakdown,
		}, nil
	}

	words, _ := rctx.Tools.Invoke("text.wordcount", map[string]any{"text": req.Prompt})

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d memories", total)
	if cats, ok := breakdown["by_category"].(map[string]int); ok && len(cats) > 0 {
		names := make([]string, 0, len(cats))
		for name := range cats {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%d %s", cats[name], name)
		}
		fmt.Fprintf(&b, ": %s", strings.Join(parts, ", "))
	}
	b.WriteString(".")

	return model.AgentResult{
		Message:    b.String(),
		Confidence: 0.8,
		Metadata:   breakdown,
		Insights: []model.Insight{{
			Kind:    "analysis",
			Content: fmt.Sprintf("question of %v words over %d memories", words, total),
		}},
	}, nil
}

// breakdown computes (or recalls) the owner's memory category breakdown.
func (a *AnalystAgent) breakdown(ownerID string, rctx *Context) map[string]any {
	key := "analyst:breakdown:" + ownerID
	if cached, ok := rctx.Cache.Get(key); ok {
		return cached
	}

	sum := rctx.Memories.Summary(ownerID)
	cats := make(map[string]int, len(sum.ByCategory))
	for cat, n := range sum.ByCategory {
		cats[string(cat)] = n
	}
	out := map[string]any{
		"total":       sum.TotalItems,
		"by_category": cats,
	}
	rctx.Cache.Set(key, out, 30*time.Second)
	return out
}
