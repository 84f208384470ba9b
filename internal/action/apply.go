package action

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/annai-ai/annai/internal/memory"
	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/schema"
)

// payloadSchemas validates a draft's payload before the draft exists, so a
// redeemed token can never carry a malformed effect.
var payloadSchemas = map[model.DraftKind]schema.Schema{
	model.DraftRecordCreate: {
		Kind: schema.KindObject,
		Properties: map[string]schema.Schema{
			"table": {Kind: schema.KindString, Required: true, Min: schema.Bound(1), Max: schema.Bound(100)},
			"data":  {Kind: schema.KindObject},
		},
	},
	model.DraftRecordUpdate: {
		Kind: schema.KindObject,
		Properties: map[string]schema.Schema{
			"table": {Kind: schema.KindString, Required: true, Min: schema.Bound(1), Max: schema.Bound(100)},
			"id":    {Kind: schema.KindString, Required: true},
			"patch": {Kind: schema.KindObject, Required: true},
		},
	},
	model.DraftRecordDelete: {
		Kind: schema.KindObject,
		Properties: map[string]schema.Schema{
			"table": {Kind: schema.KindString, Required: true, Min: schema.Bound(1), Max: schema.Bound(100)},
			"id":    {Kind: schema.KindString, Required: true},
		},
	},
	model.DraftMemoryForget: {
		Kind: schema.KindObject,
		Properties: map[string]schema.Schema{
			"memory_id": {Kind: schema.KindString, Required: true},
		},
	},
}

// apply routes a redeemed draft to its target. record.* kinds go through the
// data-access capability; memory.forget goes through the memory store.
func (m *Manager) apply(ctx context.Context, draft model.ActionDraft) (map[string]any, error) {
	switch draft.Kind {
	case model.DraftRecordCreate:
		table, _ := draft.Payload["table"].(string)
		data, _ := draft.Payload["data"].(map[string]any)
		rec, err := m.records.Create(ctx, draft.OwnerID, table, data)
		if err != nil {
			return nil, err
		}
		return map[string]any{"record_id": rec.ID.String(), "table": table}, nil

	case model.DraftRecordUpdate:
		table, _ := draft.Payload["table"].(string)
		patch, _ := draft.Payload["patch"].(map[string]any)
		id, err := payloadUUID(draft.Payload, "id")
		if err != nil {
			return nil, err
		}
		rec, err := m.records.Update(ctx, draft.OwnerID, table, id, patch)
		if err != nil {
			return nil, err
		}
		return map[string]any{"record_id": rec.ID.String(), "table": table}, nil

	case model.DraftRecordDelete:
		table, _ := draft.Payload["table"].(string)
		id, err := payloadUUID(draft.Payload, "id")
		if err != nil {
			return nil, err
		}
		if err := m.records.Delete(ctx, draft.OwnerID, table, id); err != nil {
			return nil, err
		}
		return map[string]any{"record_id": id.String(), "table": table}, nil

	case model.DraftMemoryForget:
		id, err := payloadUUID(draft.Payload, "memory_id")
		if err != nil {
			return nil, err
		}
		if !m.memories.Delete(draft.OwnerID, id) {
			return nil, fmt.Errorf("action: memory %s: %w", id, memory.ErrNotFound)
		}
		return map[string]any{"memory_id": id.String()}, nil

	default:
		return nil, fmt.Errorf("action: unknown draft kind %q", draft.Kind)
	}
}

func payloadUUID(payload map[string]any, key string) (uuid.UUID, error) {
	s, _ := payload[key].(string)
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("action: parse %s: %w", key, err)
	}
	return id, nil
}
