package memory

import (
	"regexp"
	"strings"

	"github.com/annai-ai/annai/internal/model"
)

// categoryRule maps a content pattern to a category. Rules are evaluated in
// order; the first match wins.
type categoryRule struct {
	pattern  *regexp.Regexp
	category model.MemoryCategory
}

var preferencePattern = regexp.MustCompile(`(?i)\b(i (prefer|like|love|hate|dislike|want)|my favou?rite|preference)\b`)

// factPattern marks short declarative sentences: "X is Y", "X are Y".
var factPattern = regexp.MustCompile(`(?i)\b(is|are|was|were|equals)\b`)

var categoryRules = []categoryRule{
	{regexp.MustCompile(`(?i)\b(need to|have to|to-?do|task|remind me|deadline|due)\b`), model.CategoryTask},
	{regexp.MustCompile(`(?i)\b(realized|noticed|learned|pattern|insight|it turns out)\b`), model.CategoryInsight},
	{regexp.MustCompile(`(?i)\b(said|told|asked|discussed|conversation|meeting)\b`), model.CategoryConversation},
	{regexp.MustCompile(`(?i)\b(automation|workflow|trigger|schedule)\b`), model.CategoryAutomation},
}

// Classify derives a category from content. Evaluated once at creation and
// never recomputed. Checks run in a fixed order: preference, then fact,
// then the remaining keyword rules, first match wins.
func Classify(content string) model.MemoryCategory {
	if preferencePattern.MatchString(content) {
		return model.CategoryPreference
	}
	// Short declarative sentences read as facts before the keyword rules:
	// "the deadline is Friday" states a fact, not a task to schedule.
	if len(content) < 120 && factPattern.MatchString(content) {
		return model.CategoryFact
	}
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(content) {
			return rule.category
		}
	}
	return model.CategoryGeneral
}

var (
	emphasisPattern   = regexp.MustCompile(`(?i)\b(important|always|never|critical|essential|remember)\b`)
	obligationPattern = regexp.MustCompile(`(?i)\b(must|should|need to|have to)\b`)
)

// ScoreImportance computes the advisory importance of content: base 0.5,
// +0.1 for length > 100, +0.1 for length > 200, +0.2 for emphasis markers,
// +0.1 for obligation markers, clamped to 1.0.
func ScoreImportance(content string) float64 {
	score := 0.5
	if len(content) > 100 {
		score += 0.1
	}
	if len(content) > 200 {
		score += 0.1
	}
	if emphasisPattern.MatchString(content) {
		score += 0.2
	}
	if obligationPattern.MatchString(content) {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// termOverlap counts how many distinct query words appear in content,
// case-insensitive. Used by Query ranking.
func termOverlap(content, query string) int {
	lower := strings.ToLower(content)
	seen := make(map[string]bool)
	count := 0
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if seen[word] {
			continue
		}
		seen[word] = true
		if strings.Contains(lower, word) {
			count++
		}
	}
	return count
}
