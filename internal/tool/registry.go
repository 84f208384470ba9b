// Package tool provides the registry of pure helper functions agents invoke
// instead of embedding ad-hoc logic. Each tool carries usage counters for
// the diagnostics surface.
package tool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/annai-ai/annai/internal/bus"
	"github.com/annai-ai/annai/internal/model"
)

// ErrNotFound is returned when invoking an unregistered tool.
var ErrNotFound = errors.New("tool: not registered")

// Func is a pure tool implementation: args in, result out. Implementations
// must not touch durable state; side effects go through action drafts.
type Func func(args map[string]any) (any, error)

// Descriptor identifies a tool.
type Descriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UsageStats reports per-tool invocation counters.
type UsageStats struct {
	Invocations int64 `json:"invocations"`
	Failures    int64 `json:"failures"`
}

type registered struct {
	desc  Descriptor
	fn    Func
	usage UsageStats
}

// Registry maps tool identifiers to functions. Safe for concurrent use.
type Registry struct {
	bus *bus.Bus

	mu    sync.RWMutex
	tools map[string]*registered
	order []string
}

// NewRegistry creates an empty registry. Invocations emit events on b.
func NewRegistry(b *bus.Bus) *Registry {
	return &Registry{bus: b, tools: make(map[string]*registered)}
}

// Register adds a tool. Re-registering an ID replaces the function and
// resets its counters.
func (r *Registry) Register(desc Descriptor, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[desc.ID]; !exists {
		r.order = append(r.order, desc.ID)
	}
	r.tools[desc.ID] = &registered{desc: desc, fn: fn}
}

// Invoke runs the tool with args, tracking usage.
func (r *Registry) Invoke(id string, args map[string]any) (any, error) {
	r.mu.Lock()
	reg, ok := r.tools[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	reg.usage.Invocations++
	fn := reg.fn
	r.mu.Unlock()

	result, err := fn(args)
	if err != nil {
		r.mu.Lock()
		reg.usage.Failures++
		r.mu.Unlock()
	}

	r.bus.Emit(model.EventToolInvoked, map[string]any{
		"tool_id": id,
		"ok":      err == nil,
	})
	return result, err
}

// List returns descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tools[id].desc)
	}
	return out
}

// Stats returns usage counters keyed by tool ID.
func (r *Registry) Stats() map[string]UsageStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]UsageStats, len(r.tools))
	for id, reg := range r.tools {
		out[id] = reg.usage
	}
	return out
}
