package model

import "time"

// DraftKind identifies what an action draft will do when redeemed. Kinds are
// a closed set: each has a payload schema that is validated before a draft is
// created, and an applier that routes the payload to its target.
type DraftKind string

const (
	// record.* kinds apply through the external data-access capability.
	DraftRecordCreate DraftKind = "record.create"
	DraftRecordUpdate DraftKind = "record.update"
	DraftRecordDelete DraftKind = "record.delete"

	// memory.forget applies through the in-process memory store.
	DraftMemoryForget DraftKind = "memory.forget"
)

// KnownDraftKinds lists every kind the confirmation subsystem accepts.
func KnownDraftKinds() []DraftKind {
	return []DraftKind{DraftRecordCreate, DraftRecordUpdate, DraftRecordDelete, DraftMemoryForget}
}

// ActionDraft is a proposed side effect awaiting confirmation. The token is
// opaque and single-use: it redeems exactly once, and only before ExpiresAt.
type ActionDraft struct {
	Token                string         `json:"token"`
	Kind                 DraftKind      `json:"kind"`
	Title                string         `json:"title"`
	Description          string         `json:"description"`
	Payload              map[string]any `json:"payload"`
	OwnerID              string         `json:"owner_id"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	// Reversible is caller-facing metadata only; the subsystem implements
	// no undo.
	Reversible bool      `json:"reversible"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// RedemptionOutcome is the result of redeeming a confirmation token.
type RedemptionOutcome struct {
	Applied   bool           `json:"applied"`
	Result    map[string]any `json:"result,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Error     string         `json:"error,omitempty"`
}
