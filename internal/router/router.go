// Package router ranks candidate agents for an incoming prompt. Routing is
// data-driven: an ordered table of (pattern, agent, weight) triggers is
// scored against the prompt, so the policy is testable without touching any
// agent code.
package router

import (
	"regexp"
	"sync"
)

// Trigger binds one pattern to an agent with a weight. Patterns are matched
// case-insensitively against the whole prompt.
type Trigger struct {
	Pattern *regexp.Regexp
	AgentID string
	Weight  float64
}

// Candidate is one routed agent with its accumulated score.
type Candidate struct {
	AgentID string  `json:"agent_id"`
	Score   float64 `json:"score"`
}

// Intent is the coarse classification AnalyzeIntent produces. Diagnostics
// only; routing decisions never consult it.
type Intent struct {
	Primary    string  `json:"primary"`
	Confidence float64 `json:"confidence"`
}

const (
	IntentQuestion  = "question"
	IntentCommand   = "command"
	IntentStatement = "statement"
)

// Stats summarizes the routing table for the diagnostics surface.
type Stats struct {
	Triggers map[string]int `json:"triggers_per_agent"`
	Fallback string         `json:"fallback"`
	Routed   int64          `json:"requests_routed"`
}

// Router scores prompts against its trigger table. Safe for concurrent use;
// the table is fixed after construction.
type Router struct {
	triggers []Trigger
	fallback string
	declared []string

	mu     sync.Mutex
	routed int64
}

// New builds a router over the given trigger table. Declaration order of
// agents in the table breaks score ties, so routing is deterministic. The
// fallback agent is returned when nothing scores.
func New(triggers []Trigger, fallback string) *Router {
	r := &Router{triggers: triggers, fallback: fallback}
	seen := make(map[string]bool)
	for _, t := range triggers {
		if !seen[t.AgentID] {
			seen[t.AgentID] = true
			r.declared = append(r.declared, t.AgentID)
		}
	}
	return r
}

// Route returns agents with a positive score, ordered by descending score
// with ties broken by declaration order. When no trigger matches, the
// fallback agent is returned alone.
func (r *Router) Route(prompt string) []Candidate {
	r.mu.Lock()
	r.routed++
	r.mu.Unlock()

	scores := make(map[string]float64)
	for _, t := range r.triggers {
		if t.Pattern.MatchString(prompt) {
			scores[t.AgentID] += t.Weight
		}
	}
	if len(scores) == 0 {
		return []Candidate{{AgentID: r.fallback, Score: 0}}
	}

	out := make([]Candidate, 0, len(scores))
	for _, id := range r.declared {
		if s, ok := scores[id]; ok {
			out = append(out, Candidate{AgentID: id, Score: s})
		}
	}
	// Insertion sort keeps the declaration-order tie-break stable.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

var (
	questionPattern = regexp.MustCompile(`(?i)^\s*(who|what|when|where|why|how|which|can|could|should|would|is|are|do|does|did)\b|\?\s*$`)
	commandPattern  = regexp.MustCompile(`(?i)^\s*(go|open|show|find|create|add|delete|remove|update|set|remember|forget|remind|list|take|navigate)\b`)
)

// AnalyzeIntent buckets the prompt into question, command, or statement with
// a confidence derived from routing match strength.
func (r *Router) AnalyzeIntent(prompt string) Intent {
	label := IntentStatement
	switch {
	case questionPattern.MatchString(prompt):
		label = IntentQuestion
	case commandPattern.MatchString(prompt):
		label = IntentCommand
	}

	var total float64
	for _, t := range r.triggers {
		if t.Pattern.MatchString(prompt) {
			total += t.Weight
		}
	}
	confidence := 0.3 + total*0.2
	if confidence > 0.95 {
		confidence = 0.95
	}
	return Intent{Primary: label, Confidence: confidence}
}

// Stats reports trigger counts per agent and how many prompts were routed.
func (r *Router) Stats() Stats {
	perAgent := make(map[string]int, len(r.declared))
	for _, t := range r.triggers {
		perAgent[t.AgentID]++
	}
	r.mu.Lock()
	routed := r.routed
	r.mu.Unlock()
	return Stats{Triggers: perAgent, Fallback: r.fallback, Routed: routed}
}
