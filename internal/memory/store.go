// Package memory implements the per-owner memory store: short text snippets
// with keyword classification, advisory importance, and term-overlap ranked
// retrieval. State is process-local; durable records belong to the
// data-access capability, not here.
package memory

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/annai-ai/annai/internal/bus"
	"github.com/annai-ai/annai/internal/model"
)

// ErrNotFound is returned when an owner+id pair does not exist.
var ErrNotFound = errors.New("memory: item not found")

// QueryParams narrows and ranks a memory lookup. OwnerID is required.
type QueryParams struct {
	OwnerID  string
	Category model.MemoryCategory
	Text     string
	Limit    int
}

// Store holds memories per owner. Safe for concurrent use.
type Store struct {
	bus *bus.Bus

	mu    sync.RWMutex
	items map[string]map[uuid.UUID]*model.MemoryItem // ownerID → id → item
}

// NewStore creates an empty memory store. Events are emitted on b.
func NewStore(b *bus.Bus) *Store {
	return &Store{
		bus:   b,
		items: make(map[string]map[uuid.UUID]*model.MemoryItem),
	}
}

// Add stores content for ownerID. When category is empty it is derived from
// content; importance is always derived. Both are fixed at creation.
func (s *Store) Add(ownerID, content string, category model.MemoryCategory, metadata map[string]any) model.MemoryItem {
	if category == "" {
		category = Classify(content)
	}
	now := time.Now().UTC()
	item := &model.MemoryItem{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Content:        content,
		Category:       category,
		Importance:     ScoreImportance(content),
		CreatedAt:      now,
		LastAccessedAt: now,
		Metadata:       metadata,
	}

	s.mu.Lock()
	owned, ok := s.items[ownerID]
	if !ok {
		owned = make(map[uuid.UUID]*model.MemoryItem)
		s.items[ownerID] = owned
	}
	owned[item.ID] = item
	s.mu.Unlock()

	s.bus.Emit(model.EventMemoryAdded, map[string]any{
		"memory_id": item.ID.String(),
		"owner_id":  ownerID,
		"category":  string(category),
	})
	return *item
}

// Get returns one item by owner and id, bumping its access bookkeeping.
func (s *Store) Get(ownerID string, id uuid.UUID) (model.MemoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[ownerID][id]
	if !ok {
		return model.MemoryItem{}, ErrNotFound
	}
	item.LastAccessedAt = time.Now().UTC()
	item.AccessCount++
	return *item, nil
}

// Query returns the owner's items matching the params, ranked by term
// overlap against Text (ties broken by recency descending). Without Text,
// items are ordered by recency alone. Returned items have their access
// bookkeeping bumped.
func (s *Store) Query(p QueryParams) []model.MemoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	type scored struct {
		item  *model.MemoryItem
		score int
	}

	var matches []scored
	for _, item := range s.items[p.OwnerID] {
		if p.Category != "" && item.Category != p.Category {
			continue
		}
		sc := 0
		if p.Text != "" {
			sc = termOverlap(item.Content, p.Text)
			if sc == 0 {
				continue
			}
		}
		matches = append(matches, scored{item: item, score: sc})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].item.CreatedAt.After(matches[j].item.CreatedAt)
	})

	if p.Limit > 0 && len(matches) > p.Limit {
		matches = matches[:p.Limit]
	}

	now := time.Now().UTC()
	out := make([]model.MemoryItem, len(matches))
	for i, m := range matches {
		m.item.LastAccessedAt = now
		m.item.AccessCount++
		out[i] = *m.item
	}
	return out
}

// Delete removes an item by owner and id. Irreversible, not soft.
func (s *Store) Delete(ownerID string, id uuid.UUID) bool {
	s.mu.Lock()
	owned := s.items[ownerID]
	_, ok := owned[id]
	if ok {
		delete(owned, id)
		if len(owned) == 0 {
			delete(s.items, ownerID)
		}
	}
	s.mu.Unlock()

	if ok {
		s.bus.Emit(model.EventMemoryDeleted, map[string]any{
			"memory_id": id.String(),
			"owner_id":  ownerID,
		})
	}
	return ok
}

// Summary aggregates the owner's items by category.
func (s *Store) Summary(ownerID string) model.MemorySummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := model.MemorySummary{ByCategory: make(map[model.MemoryCategory]int)}
	for _, item := range s.items[ownerID] {
		sum.TotalItems++
		sum.ByCategory[item.Category]++
	}
	return sum
}
