package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/router"
)

// page is one navigable destination with the aliases users say for it.
type page struct {
	Name    string
	Path    string
	Aliases []string
}

var pages = []page{
	{Name: "Dashboard", Path: "/", Aliases: []string{"dashboard", "home", "overview"}},
	{Name: "Automations", Path: "/automations", Aliases: []string{"automations", "automation", "workflows", "rules"}},
	{Name: "Memories", Path: "/memories", Aliases: []string{"memories", "memory page"}},
	{Name: "Bookmarks", Path: "/bookmarks", Aliases: []string{"bookmarks", "bookmark", "saved links"}},
	{Name: "Settings", Path: "/settings", Aliases: []string{"settings", "preferences", "config"}},
	{Name: "Activity", Path: "/activity", Aliases: []string{"activity", "history", "events"}},
}

var (
	navTrigger      = regexp.MustCompile(`(?i)\b(go to|open|navigate|take me|where (is|are|can i)|find)\b`)
	bookmarkPattern = regexp.MustCompile(`(?i)\bbookmark\s+(this|the)?\s*(.+)$`)
)

// NavigatorAgent resolves "go to" style requests against the page table and
// can propose bookmark records.
type NavigatorAgent struct{}

func NewNavigatorAgent() *NavigatorAgent { return &NavigatorAgent{} }

func (a *NavigatorAgent) Descriptor() Descriptor {
	return Descriptor{
		ID:                router.AgentNavigator,
		Name:              "Navigator",
		Description:       "Takes the user to dashboard pages and manages bookmarks.",
		Capabilities:      []string{"navigate", "locate", "bookmark"},
		SafetyTier:        TierWrite,
		CanProduceActions: true,
	}
}

func (a *NavigatorAgent) CanHandle(req model.AgentRequest) bool {
	return navTrigger.MatchString(req.Prompt) || bookmarkPattern.MatchString(req.Prompt)
}

func (a *NavigatorAgent) Process(_ context.Context, req model.AgentRequest, _ *Context) (model.AgentResult, error) {
	if m := bookmarkPattern.FindStringSubmatch(req.Prompt); m != nil {
		return a.bookmark(strings.TrimSpace(m[2]))
	}

	prompt := strings.ToLower(req.Prompt)
	for _, p := range pages {
		for _, alias := range p.Aliases {
			if strings.Contains(prompt, alias) {
				return model.AgentResult{
					Message:    fmt.Sprintf("Taking you to %s.", p.Name),
					Confidence: 0.9,
					Metadata:   map[string]any{"navigate_to": p.Path, "page": p.Name},
				}, nil
			}
		}
	}

	names := make([]string, len(pages))
	for i, p := range pages {
		names[i] = p.Name
	}
	return model.AgentResult{
		Message:    fmt.Sprintf("I couldn't find that page. Available pages: %s.", strings.Join(names, ", ")),
		Confidence: 0.4,
	}, nil
}

func (a *NavigatorAgent) bookmark(target string) (model.AgentResult, error) {
	if target == "" {
		return model.AgentResult{Message: "tell me what to bookmark", Confidence: 0.4}, nil
	}
	draft := model.ActionDraft{
		Kind:        model.DraftRecordCreate,
		Title:       "Save bookmark",
		Description: fmt.Sprintf("Bookmark %q", target),
		Payload: map[string]any{
			"table": "bookmarks",
			"data":  map[string]any{"target": target},
		},
		RequiresConfirmation: false,
		Reversible:           true,
	}
	return model.AgentResult{
		Message:      fmt.Sprintf("Saving a bookmark for %q.", target),
		Confidence:   0.85,
		ActionDrafts: []model.ActionDraft{draft},
	}, nil
}
