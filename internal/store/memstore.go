package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is the in-process Store backend. Used by tests and by library
// embedders that bring no database.
type MemStore struct {
	mu     sync.RWMutex
	tables map[string]map[uuid.UUID]Record
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{tables: make(map[string]map[uuid.UUID]Record)}
}

func (s *MemStore) Create(_ context.Context, ownerID, table string, data map[string]any) (Record, error) {
	now := time.Now().UTC()
	rec := Record{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Table:     table,
		Data:      maps.Clone(data),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[uuid.UUID]Record)
		s.tables[table] = rows
	}
	rows[rec.ID] = rec
	return rec, nil
}

func (s *MemStore) Update(_ context.Context, ownerID, table string, id uuid.UUID, patch map[string]any) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tables[table][id]
	if !ok || rec.OwnerID != ownerID {
		return Record{}, fmt.Errorf("store: record %s: %w", id, ErrNotFound)
	}
	rec.Data = maps.Clone(rec.Data)
	for k, v := range patch {
		rec.Data[k] = v
	}
	rec.UpdatedAt = time.Now().UTC()
	s.tables[table][id] = rec
	return rec, nil
}

func (s *MemStore) Delete(_ context.Context, ownerID, table string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tables[table][id]
	if !ok || rec.OwnerID != ownerID {
		return fmt.Errorf("store: record %s: %w", id, ErrNotFound)
	}
	delete(s.tables[table], id)
	return nil
}

func (s *MemStore) Query(_ context.Context, ownerID, table string, filter Filter) ([]Record, error) {
	limit := clampLimit(filter.Limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.tables[table] {
		if rec.OwnerID != ownerID || !matches(rec.Data, filter.Fields) {
			continue
		}
		rec.Data = maps.Clone(rec.Data)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) Ping(context.Context) error { return nil }

func (s *MemStore) Close(context.Context) error { return nil }
