package router

import "regexp"

// Agent identifiers known to the default routing table.
const (
	AgentMemory    = "memory"
	AgentNavigator = "navigator"
	AgentAnalyst   = "analyst"
	AgentGeneral   = "general"
)

// DefaultTriggers is the stock routing table. Order matters: it fixes the
// tie-break between agents with equal scores.
func DefaultTriggers() []Trigger {
	return []Trigger{
		// Memory verbs score highest so explicit recall requests beat
		// incidental question words in the same prompt.
		{Pattern: regexp.MustCompile(`(?i)\bremember\b`), AgentID: AgentMemory, Weight: 2},
		{Pattern: regexp.MustCompile(`(?i)\b(recall|forget)\b`), AgentID: AgentMemory, Weight: 2},
		{Pattern: regexp.MustCompile(`(?i)\b(note|memor(y|ies|ize))\b`), AgentID: AgentMemory, Weight: 1},
		{Pattern: regexp.MustCompile(`(?i)\bwhat did i\b`), AgentID: AgentMemory, Weight: 1.5},

		{Pattern: regexp.MustCompile(`(?i)\bgo to\b`), AgentID: AgentNavigator, Weight: 2},
		{Pattern: regexp.MustCompile(`(?i)\b(open|navigate|take me)\b`), AgentID: AgentNavigator, Weight: 2},
		{Pattern: regexp.MustCompile(`(?i)\bwhere (is|are|can i)\b`), AgentID: AgentNavigator, Weight: 1.5},
		{Pattern: regexp.MustCompile(`(?i)\bbookmark\b`), AgentID: AgentNavigator, Weight: 2},
		{Pattern: regexp.MustCompile(`(?i)\b(page|screen|dashboard|settings)\b`), AgentID: AgentNavigator, Weight: 1},

		{Pattern: regexp.MustCompile(`(?i)\b(analy[sz]e|summari[sz]e|compare)\b`), AgentID: AgentAnalyst, Weight: 2},
		{Pattern: regexp.MustCompile(`(?i)\b(count|total|sum|average|how many|how much)\b`), AgentID: AgentAnalyst, Weight: 1.5},
		{Pattern: regexp.MustCompile(`(?i)\b(trend|statistic|breakdown|report)\b`), AgentID: AgentAnalyst, Weight: 1},
	}
}
