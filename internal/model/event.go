package model

import "time"

// Event names emitted on the bus. The bus accepts arbitrary names; these
// constants cover the orchestration lifecycle so subscribers and tests don't
// scatter string literals.
const (
	EventRequestReceived = "request:received"
	EventRequestRejected = "request:rejected"
	EventRequestRouted   = "request:routed"
	EventAgentStarted    = "agent:started"
	EventAgentCompleted  = "agent:completed"
	EventAgentFailed     = "agent:failed"
	EventMemoryAdded     = "memory:added"
	EventMemoryDeleted   = "memory:deleted"
	EventToolInvoked     = "tool:invoked"
	EventActionDrafted   = "action:drafted"
	EventActionApplied   = "action:applied"
	EventActionDeclined  = "action:declined"
	EventActionFailed    = "action:failed"
	EventActionExpired   = "action:expired"
)

// Event is one entry in the bus history. Immutable once emitted; retained in
// a bounded ring purely for inspection, never a source of truth.
type Event struct {
	Name      string         `json:"name"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
