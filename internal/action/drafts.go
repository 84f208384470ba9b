// Package action implements the draft / confirmation subsystem: the single
// choke point through which every durable side effect passes. An agent's
// proposed effect becomes a time-limited draft with an unguessable token;
// redeeming the token applies the effect exactly once.
package action

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/annai-ai/annai/internal/bus"
	"github.com/annai-ai/annai/internal/memory"
	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/schema"
	"github.com/annai-ai/annai/internal/store"
)

// tokenHash is the pending-map key. Tokens are never stored in redeemable
// form; a leaked map snapshot cannot be replayed.
type tokenHash [sha256.Size]byte

type pendingDraft struct {
	draft model.ActionDraft
}

// Manager owns pending drafts from creation to redemption or expiry.
type Manager struct {
	bus      *bus.Bus
	records  store.Store
	memories *memory.Store
	logger   *slog.Logger
	ttl      time.Duration

	mu      sync.Mutex
	pending map[tokenHash]*pendingDraft

	done     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a draft manager. ttl is the default draft lifetime.
func NewManager(b *bus.Bus, records store.Store, memories *memory.Store, ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		bus:      b,
		records:  records,
		memories: memories,
		logger:   logger,
		ttl:      ttl,
		pending:  make(map[tokenHash]*pendingDraft),
		done:     make(chan struct{}),
	}
}

// CreateDraft validates the proposal's payload against its kind schema,
// issues a single-use token, and registers the draft. The returned draft
// carries the token; the stored copy is keyed by its hash.
func (m *Manager) CreateDraft(ownerID string, proposal model.ActionDraft) (model.ActionDraft, error) {
	sch, ok := payloadSchemas[proposal.Kind]
	if !ok {
		return model.ActionDraft{}, fmt.Errorf("action: unknown draft kind %q", proposal.Kind)
	}
	if res := schema.Validate(anyPayload(proposal.Payload), sch); !res.Valid {
		return model.ActionDraft{}, fmt.Errorf("action: invalid %s payload: %s at %q",
			proposal.Kind, res.Errors[0].Message, res.Errors[0].Path)
	}

	token, hash, err := newToken()
	if err != nil {
		return model.ActionDraft{}, fmt.Errorf("action: generate token: %w", err)
	}

	now := time.Now().UTC()
	draft := proposal
	draft.Token = token
	draft.OwnerID = ownerID
	draft.CreatedAt = now
	draft.ExpiresAt = now.Add(m.ttl)

	stored := draft
	stored.Token = ""

	m.mu.Lock()
	m.pending[hash] = &pendingDraft{draft: stored}
	m.mu.Unlock()

	m.bus.Emit(model.EventActionDrafted, map[string]any{
		"kind":     string(draft.Kind),
		"owner_id": ownerID,
		"title":    draft.Title,
	})
	return draft, nil
}

// Redeem consumes a token. Every path through here removes the draft first,
// so a second call with the same token can never re-apply.
func (m *Manager) Redeem(ctx context.Context, token, ownerID string, approve bool) model.RedemptionOutcome {
	hash := hashToken(token)

	m.mu.Lock()
	p, ok := m.pending[hash]
	if !ok || p.draft.OwnerID != ownerID {
		// Owner mismatch reads as unknown so tokens don't leak across owners.
		m.mu.Unlock()
		return model.RedemptionOutcome{ErrorKind: model.ErrKindUnknownToken, Error: "unknown or already redeemed token"}
	}
	delete(m.pending, hash)
	m.mu.Unlock()

	draft := p.draft
	if time.Now().After(draft.ExpiresAt) {
		m.bus.Emit(model.EventActionExpired, map[string]any{"kind": string(draft.Kind), "owner_id": ownerID})
		return model.RedemptionOutcome{ErrorKind: model.ErrKindExpiredToken, Error: "draft expired"}
	}

	if !approve {
		m.bus.Emit(model.EventActionDeclined, map[string]any{"kind": string(draft.Kind), "owner_id": ownerID})
		return model.RedemptionOutcome{Applied: false}
	}

	result, err := m.apply(ctx, draft)
	if err != nil {
		m.logger.Warn("action: apply failed", "kind", draft.Kind, "owner_id", ownerID, "error", err)
		m.bus.Emit(model.EventActionFailed, map[string]any{
			"kind":     string(draft.Kind),
			"owner_id": ownerID,
			"error":    err.Error(),
		})
		// The draft is not re-inserted: applies are not assumed idempotent,
		// so a failed apply must not be retryable through the same token.
		return model.RedemptionOutcome{ErrorKind: model.ErrKindApplyFailed, Error: err.Error()}
	}

	m.bus.Emit(model.EventActionApplied, map[string]any{"kind": string(draft.Kind), "owner_id": ownerID})
	return model.RedemptionOutcome{Applied: true, Result: result}
}

// Expire cancels a pending draft without applying it.
func (m *Manager) Expire(token, ownerID string) bool {
	hash := hashToken(token)

	m.mu.Lock()
	p, ok := m.pending[hash]
	if ok && p.draft.OwnerID == ownerID {
		delete(m.pending, hash)
	} else {
		ok = false
	}
	m.mu.Unlock()

	if ok {
		m.bus.Emit(model.EventActionExpired, map[string]any{"kind": string(p.draft.Kind), "owner_id": ownerID})
	}
	return ok
}

// Open returns the number of pending drafts.
func (m *Manager) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Start launches the background sweep that purges expired drafts.
func (m *Manager) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.done:
				return
			}
		}
	}()
}

// Close stops the background sweep. Idempotent.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *Manager) sweep() {
	now := time.Now()

	m.mu.Lock()
	var expired []*pendingDraft
	for hash, p := range m.pending {
		if now.After(p.draft.ExpiresAt) {
			delete(m.pending, hash)
			expired = append(expired, p)
		}
	}
	m.mu.Unlock()

	for _, p := range expired {
		m.bus.Emit(model.EventActionExpired, map[string]any{
			"kind":     string(p.draft.Kind),
			"owner_id": p.draft.OwnerID,
		})
	}
}

func newToken() (string, tokenHash, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", tokenHash{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	return token, hashToken(token), nil
}

func hashToken(token string) tokenHash {
	return sha256.Sum256([]byte(token))
}

func anyPayload(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}
