package annai

import (
	"log/slog"
	"time"

	"github.com/annai-ai/annai/internal/model"
)

// Event is the public representation of a bus event, delivered to hooks
// registered with WithEventHook. No internal package imports — safe to use
// from outside the module.
type Event struct {
	Name      string
	Payload   map[string]any
	Timestamp time.Time
}

// EventHook receives lifecycle events for one event name. Hooks run on the
// emitting goroutine and must not block.
type EventHook func(Event)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port         int
	storeBackend string
	databaseURL  string
	sqlitePath   string
	ownerAPIKey  string
	logger       *slog.Logger
	version      string
	eventHooks   []eventHookReg
}

type eventHookReg struct {
	event string
	fn    EventHook
}

// WithPort overrides the TCP port from config (ANNAI_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithStoreBackend overrides the record store backend from config
// (ANNAI_STORE_BACKEND env var): "memory", "sqlite", or "postgres".
func WithStoreBackend(backend string) Option {
	return func(o *resolvedOptions) { o.storeBackend = backend }
}

// WithDatabaseURL overrides the Postgres connection string from config
// (DATABASE_URL env var). Only used when the backend is "postgres".
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithSQLitePath overrides the SQLite database path from config
// (ANNAI_SQLITE_PATH env var). Only used when the backend is "sqlite".
func WithSQLitePath(path string) Option {
	return func(o *resolvedOptions) { o.sqlitePath = path }
}

// WithOwnerAPIKey overrides the bootstrap API key accepted by the token
// exchange (ANNAI_OWNER_API_KEY env var).
func WithOwnerAPIKey(key string) Option {
	return func(o *resolvedOptions) { o.ownerAPIKey = key }
}

// WithLogger sets the structured logger for the App. If not set, the App
// builds a JSON logger at the configured log level and installs it as the
// slog default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithEventHook registers a hook for one event name (e.g. "action:applied").
// Multiple hooks may be registered; each receives every matching event.
func WithEventHook(event string, fn EventHook) Option {
	return func(o *resolvedOptions) {
		o.eventHooks = append(o.eventHooks, eventHookReg{event: event, fn: fn})
	}
}

// toPublicEvent converts an internal model.Event to the public annai.Event.
// Lives here because the root package is the only one that sees both sides
// of the boundary.
func toPublicEvent(ev model.Event) Event {
	return Event{
		Name:      ev.Name,
		Payload:   ev.Payload,
		Timestamp: ev.Timestamp,
	}
}
