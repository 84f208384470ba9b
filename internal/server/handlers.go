package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/annai-ai/annai/internal/action"
	"github.com/annai-ai/annai/internal/auth"
	"github.com/annai-ai/annai/internal/bus"
	"github.com/annai-ai/annai/internal/memory"
	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/orchestrator"
	"github.com/annai-ai/annai/internal/store"
)

type handlers struct {
	orch     *orchestrator.Orchestrator
	memories *memory.Store
	drafts   *action.Manager
	records  store.Store
	jwtMgr   *auth.JWTManager
	logger   *slog.Logger

	ownerKeyHash string
	ownerID      string
	version      string
	maxBodyBytes int64
}

type tokenRequest struct {
	APIKey string `json:"api_key"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	OwnerID   string    `json:"owner_id"`
}

// handleAuthToken exchanges the owner API key for a JWT.
func (h *handlers) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if req.APIKey == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "api_key is required")
		return
	}

	if h.ownerKeyHash == "" {
		// No key configured: run the dummy verify so the disabled path is not
		// distinguishable by timing, then refuse.
		auth.DummyVerify()
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "token exchange is not configured")
		return
	}

	ok, err := auth.VerifyAPIKey(req.APIKey, h.ownerKeyHash)
	if err != nil {
		h.logger.Error("api key verification failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
		return
	}
	if !ok {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid api key")
		return
	}

	token, expiresAt, err := h.jwtMgr.IssueToken(h.ownerID)
	if err != nil {
		h.logger.Error("token issuance failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		OwnerID:   h.ownerID,
	})
}

// handleAsk runs one request through the orchestrator. Routing failures and
// agent errors come back as 200s with an error kind; only transport-level
// problems map to HTTP error codes.
func (h *handlers) handleAsk(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	h.limitBody(w, r)

	var req model.AskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	req.OwnerID = claims.OwnerID

	result := h.orch.Ask(r.Context(), req)
	switch result.ErrorKind {
	case model.ErrKindValidation:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, result.Message)
	case model.ErrKindRateLimited:
		w.Header().Set("Retry-After", "1")
		writeError(w, r, http.StatusTooManyRequests, model.ErrCodeRateLimited, result.Message)
	default:
		writeJSON(w, r, http.StatusOK, result)
	}
}

// handleConfirm redeems (or declines) a pending action draft.
func (h *handlers) handleConfirm(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	h.limitBody(w, r)

	var req model.ConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "token is required")
		return
	}

	outcome := h.orch.Confirm(r.Context(), req.Token, claims.OwnerID, req.Approve)
	switch outcome.ErrorKind {
	case model.ErrKindUnknownToken:
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "unknown confirmation token")
	case model.ErrKindExpiredToken:
		writeError(w, r, http.StatusGone, model.ErrCodeGone, "confirmation token has expired")
	default:
		writeJSON(w, r, http.StatusOK, outcome)
	}
}

// handleListMemories returns the caller's memories, optionally filtered by
// category and ranked against a free-text query.
func (h *handlers) handleListMemories(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	items := h.memories.Query(memory.QueryParams{
		OwnerID:  claims.OwnerID,
		Category: model.MemoryCategory(r.URL.Query().Get("category")),
		Text:     r.URL.Query().Get("q"),
		Limit:    limit,
	})
	writeJSON(w, r, http.StatusOK, map[string]any{
		"memories": items,
		"count":    len(items),
	})
}

// handleMemorySummary returns per-category counts for the caller.
func (h *handlers) handleMemorySummary(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	writeJSON(w, r, http.StatusOK, h.memories.Summary(claims.OwnerID))
}

// handleDeleteMemory removes one memory. The delete goes through the draft
// subsystem's auto-apply path so it shares the audit trail with agent-proposed
// forgets.
func (h *handlers) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid memory id")
		return
	}

	draft, err := h.drafts.CreateDraft(claims.OwnerID, model.ActionDraft{
		Kind:       model.DraftMemoryForget,
		Title:      "Forget memory",
		Payload:    map[string]any{"memory_id": id.String()},
		Reversible: false,
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	outcome := h.drafts.Redeem(r.Context(), draft.Token, claims.OwnerID, true)
	if !outcome.Applied {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "memory not found")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"deleted": id.String()})
}

// handleDiagnosticsEvents returns recent bus events, optionally filtered.
func (h *handlers) handleDiagnosticsEvents(w http.ResponseWriter, r *http.Request) {
	filter := bus.HistoryFilter{Event: r.URL.Query().Get("event")}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "since must be RFC3339")
			return
		}
		filter.Since = since
	}

	snap := h.orch.Diagnostics(filter)
	writeJSON(w, r, http.StatusOK, map[string]any{
		"events": snap.Events,
		"count":  len(snap.Events),
	})
}

// handleDiagnosticsStats returns the full operational snapshot minus the
// event stream.
func (h *handlers) handleDiagnosticsStats(w http.ResponseWriter, r *http.Request) {
	snap := h.orch.Diagnostics(bus.HistoryFilter{})
	writeJSON(w, r, http.StatusOK, map[string]any{
		"cache":       snap.CacheStats,
		"router":      snap.RouterStats,
		"tools":       snap.ToolStats,
		"drafts_open": snap.DraftsOpen,
		"agents":      h.orch.Agents(),
	})
}

// handleHealth reports liveness and backing-store reachability.
func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.records.Ping(r.Context()); err != nil {
		h.logger.Warn("health check: store unreachable", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, map[string]any{
		"status":  status,
		"version": h.version,
	})
}

func (h *handlers) limitBody(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
}
