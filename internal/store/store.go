// Package store is the generic data-access capability behind the confirmation
// subsystem. Records are owner-scoped rows of free-form JSON grouped into
// named tables; the confirmation subsystem is the only writer during normal
// operation, which keeps side effects at a single choke point.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist or belongs
// to a different owner.
var ErrNotFound = errors.New("store: not found")

// Record is one durable row. Data is the caller's payload; the envelope
// fields are managed by the store.
type Record struct {
	ID        uuid.UUID      `json:"id"`
	OwnerID   string         `json:"owner_id"`
	Table     string         `json:"table"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Filter narrows a Query. Fields match by equality against top-level data
// keys; a zero Filter returns everything in the table for the owner.
type Filter struct {
	Fields map[string]any
	Limit  int
}

// Store is the data-access contract. All operations are owner-scoped: an
// owner can never read or mutate another owner's records.
type Store interface {
	Create(ctx context.Context, ownerID, table string, data map[string]any) (Record, error)
	Update(ctx context.Context, ownerID, table string, id uuid.UUID, patch map[string]any) (Record, error)
	Delete(ctx context.Context, ownerID, table string, id uuid.UUID) error
	Query(ctx context.Context, ownerID, table string, filter Filter) ([]Record, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// matches reports whether every filter field equals the corresponding
// top-level data key. Shared by the memory and sqlite backends, which
// filter after decoding.
func matches(data map[string]any, fields map[string]any) bool {
	for k, want := range fields {
		got, ok := data[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// clampLimit bounds query result sizes. Zero means the default.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
