// Package model defines the core domain types shared across Annai's
// orchestration subsystems: requests, results, action drafts, memories,
// and the HTTP API envelopes.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Field length limits for incoming requests. These bound the work a single
// prompt can impose on the router's regex scan and the memory store's
// term-overlap scorer.
const (
	MaxPromptLen    = 8 * 1024
	MaxSessionIDLen = 200
)

// AgentRequest is a single natural-language request. Transient — constructed
// per call, never persisted.
type AgentRequest struct {
	ID        uuid.UUID      `json:"id"`
	OwnerID   string         `json:"owner_id"`
	Prompt    string         `json:"prompt"`
	SessionID string         `json:"session_id,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// ResultStatus is the terminal state of an agent execution.
type ResultStatus string

const (
	StatusSucceeded ResultStatus = "succeeded"
	StatusFailed    ResultStatus = "failed"
	StatusTimedOut  ResultStatus = "timeout"
)

// Provenance records which agent produced a result and how. Mandatory on
// every result, success or failure; it is the unit of audit.
type Provenance struct {
	AgentID    string       `json:"agent_id"`
	Operation  string       `json:"operation"`
	Status     ResultStatus `json:"status"`
	Timestamp  time.Time    `json:"timestamp"`
	DurationMS int64        `json:"duration_ms"`
}

// Insight is a secondary observation an agent surfaces alongside its answer.
type Insight struct {
	Kind    string  `json:"kind"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// AgentResult is the outcome of processing one AgentRequest.
type AgentResult struct {
	Message      string         `json:"message"`
	Confidence   float64        `json:"confidence"`
	ActionDrafts []ActionDraft  `json:"action_drafts,omitempty"`
	Insights     []Insight      `json:"insights,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ErrorKind    string         `json:"error_kind,omitempty"`
	Provenance   Provenance     `json:"provenance"`
}

// Failure kinds surfaced in AgentResult.ErrorKind and redemption outcomes.
// Every failure mode is a structured result; nothing propagates as an
// unhandled fault.
const (
	ErrKindValidation    = "validation-error"
	ErrKindNoAgent       = "no-matching-agent"
	ErrKindAgentTimeout  = "agent-timeout"
	ErrKindAgentInternal = "agent-internal-error"
	ErrKindUnknownToken  = "unknown-token"
	ErrKindExpiredToken  = "expired-token"
	ErrKindApplyFailed   = "apply-failed"
	ErrKindRateLimited   = "rate-limited"
)
