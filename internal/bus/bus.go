// Package bus provides the in-process publish/subscribe backbone.
//
// Every other subsystem emits lifecycle events here. Delivery is synchronous
// in subscription order; history is a bounded ring kept purely for
// inspection (the diagnostics entry point), never a source of truth.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/annai-ai/annai/internal/model"
)

// Handler receives an emitted event. Handlers must not assume they run on
// any particular goroutine; Emit invokes them on the caller's.
type Handler func(model.Event)

// HistoryFilter narrows History results. Zero values match everything.
type HistoryFilter struct {
	Event string
	Since time.Time
}

var busMeter = otel.GetMeterProvider().Meter("annai/bus")

type subscription struct {
	handler Handler
	once    bool
	removed bool
}

// Bus is a synchronous pub/sub hub with bounded event history.
// Safe for concurrent use.
type Bus struct {
	logger *slog.Logger

	mu      sync.Mutex
	subs    map[string][]*subscription
	history []model.Event // fixed-size ring
	next    int
	count   int
}

// New creates a Bus retaining at most historyLimit events.
func New(logger *slog.Logger, historyLimit int) *Bus {
	if historyLimit <= 0 {
		historyLimit = 1000
	}
	return &Bus{
		logger:  logger,
		subs:    make(map[string][]*subscription),
		history: make([]model.Event, historyLimit),
	}
}

// On registers a handler for name and returns its unsubscribe function.
// Unsubscribe is idempotent.
func (b *Bus) On(name string, h Handler) func() {
	sub := &subscription{handler: h}
	b.mu.Lock()
	b.subs[name] = append(b.subs[name], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		sub.removed = true
		b.compact(name)
	}
}

// Once registers a handler that fires for exactly one emit of name,
// even under concurrent emits.
func (b *Bus) Once(name string, h Handler) func() {
	sub := &subscription{handler: h, once: true}
	b.mu.Lock()
	b.subs[name] = append(b.subs[name], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		sub.removed = true
		b.compact(name)
	}
}

// Emit delivers an event to all current subscribers for name, synchronously
// in subscription order, then appends it to history. Emitting with no
// subscribers is not an error. A panicking handler is caught and logged;
// remaining handlers still run.
func (b *Bus) Emit(name string, payload map[string]any) {
	ev := model.Event{Name: name, Payload: payload, Timestamp: time.Now().UTC()}

	b.mu.Lock()
	// Claim once-subscriptions under the lock so a concurrent Emit of the
	// same name cannot fire them a second time.
	var handlers []Handler
	for _, sub := range b.subs[name] {
		if sub.removed {
			continue
		}
		handlers = append(handlers, sub.handler)
		if sub.once {
			sub.removed = true
		}
	}
	b.compact(name)
	b.append(ev)
	b.mu.Unlock()

	for _, h := range handlers {
		b.invoke(name, h, ev)
	}

	if counter, err := busMeter.Int64Counter("annai.bus.emits"); err == nil {
		counter.Add(context.Background(), 1, otelmetric.WithAttributes())
	}
}

// invoke runs one handler with panic isolation.
func (b *Bus) invoke(name string, h Handler, ev model.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("bus: handler panicked", "event", name, "panic", r)
		}
	}()
	h(ev)
}

// History returns a filtered, time-ordered copy of retained events.
func (b *Bus) History(filter HistoryFilter) []model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.Event, 0, b.count)
	// Oldest entry sits at next when the ring has wrapped.
	start := 0
	if b.count == len(b.history) {
		start = b.next
	}
	for i := 0; i < b.count; i++ {
		ev := b.history[(start+i)%len(b.history)]
		if filter.Event != "" && ev.Name != filter.Event {
			continue
		}
		if !filter.Since.IsZero() && ev.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Len returns the number of retained events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Clear resets all subscribers and history.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string][]*subscription)
	b.history = make([]model.Event, len(b.history))
	b.next = 0
	b.count = 0
}

// append adds an event to the ring, overwriting the oldest when full.
// Caller holds mu.
func (b *Bus) append(ev model.Event) {
	b.history[b.next] = ev
	b.next = (b.next + 1) % len(b.history)
	if b.count < len(b.history) {
		b.count++
	}
}

// compact drops removed subscriptions for name. Caller holds mu.
func (b *Bus) compact(name string) {
	subs := b.subs[name]
	kept := subs[:0]
	for _, sub := range subs {
		if !sub.removed {
			kept = append(kept, sub)
		}
	}
	if len(kept) == 0 {
		delete(b.subs, name)
		return
	}
	b.subs[name] = kept
}
