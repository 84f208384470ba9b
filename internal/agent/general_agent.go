package agent

import (
	"context"
	"fmt"
	"regexp"

	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/router"
)

var timeQuestion = regexp.MustCompile(`(?i)\b(what time|current time|the time|today'?s date|what day)\b`)

// GeneralAgent is the fallback: it handles anything no specialist claims.
// Low confidence on purpose so callers can tell a routed answer from a
// fallback one.
type GeneralAgent struct{}

func NewGeneralAgent() *GeneralAgent { return &GeneralAgent{} }

func (a *GeneralAgent) Descriptor() Descriptor {
	return Descriptor{
		ID:           router.AgentGeneral,
		Name:         "General",
		Description:  "Fallback handler for requests no specialist claims.",
		Capabilities: []string{"smalltalk", "time"},
		SafetyTier:   TierReadOnly,
	}
}

// CanHandle always returns true: the fallback refuses nothing.
func (a *GeneralAgent) CanHandle(model.AgentRequest) bool { return true }

func (a *GeneralAgent) Process(_ context.Context, req model.AgentRequest, rctx *Context) (model.AgentResult, error) {
	if timeQuestion.MatchString(req.Prompt) {
		now, err := rctx.Tools.Invoke("time.now", nil)
		if err == nil {
			return model.AgentResult{
				Message:    fmt.Sprintf("It's %v right now.", now),
				Confidence: 0.7,
			}, nil
		}
	}

	msg := "I'm not sure how to help with that. Try asking me to remember something, find a page, or summarize your memories."
	if rctx.Intent.Primary == router.IntentQuestion {
		msg = "I don't have a good answer for that question yet. I can recall memories, navigate pages, or run summaries."
	}
	return model.AgentResult{
		Message:    msg,
		Confidence: 0.3,
		Metadata:   map[string]any{"intent": rctx.Intent.Primary},
	}, nil
}
