package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeGone          = "GONE"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// AskRequest is the request body for POST /v1/requests.
// OwnerID comes from JWT claims, never from the body.
type AskRequest struct {
	OwnerID   string         `json:"-"`
	Prompt    string         `json:"prompt"`
	SessionID string         `json:"session_id,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// ConfirmRequest is the request body for POST /v1/confirmations.
type ConfirmRequest struct {
	Token   string `json:"token"`
	Approve bool   `json:"approve"`
}

// DiagnosticsSnapshot is the read-only operational view returned by the
// diagnostics entry point. No mutation capability.
type DiagnosticsSnapshot struct {
	Events      []Event        `json:"events"`
	CacheStats  map[string]any `json:"cache_stats"`
	RouterStats map[string]any `json:"router_stats"`
	ToolStats   map[string]any `json:"tool_stats"`
	DraftsOpen  int            `json:"drafts_open"`
}
