// Package annai is the public API for embedding the Annai assistant core.
//
// Consumers import this package to construct and run the server without
// forking it:
//
//	app, err := annai.New(
//	    annai.WithVersion(version),
//	    annai.WithLogger(logger),
//	    annai.WithEventHook("action:applied", myHook),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: annai (root) imports
// internal/*, but internal/* never imports annai (root). Public types
// (Event) are standalone structs with no internal imports; conversion
// helpers live here because this is the only file that sees both sides of
// the boundary.
package annai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/annai-ai/annai/api"
	"github.com/annai-ai/annai/internal/action"
	"github.com/annai-ai/annai/internal/agent"
	"github.com/annai-ai/annai/internal/auth"
	"github.com/annai-ai/annai/internal/bus"
	"github.com/annai-ai/annai/internal/cache"
	"github.com/annai-ai/annai/internal/config"
	"github.com/annai-ai/annai/internal/mcp"
	"github.com/annai-ai/annai/internal/memory"
	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/orchestrator"
	"github.com/annai-ai/annai/internal/ratelimit"
	"github.com/annai-ai/annai/internal/router"
	"github.com/annai-ai/annai/internal/server"
	"github.com/annai-ai/annai/internal/store"
	"github.com/annai-ai/annai/internal/telemetry"
	"github.com/annai-ai/annai/internal/tool"
)

// App is the Annai server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	srv          *server.Server
	records      store.Store
	drafts       *action.Manager
	results      *agent.ResultCache
	limiter      ratelimit.Limiter
	otelShutdown func(context.Context) error
	unsubscribes []func()
	logger       *slog.Logger
}

// New initialises the Annai server. It opens the record store, wires all
// subsystems, and returns a ready-to-run App. It does NOT start any
// goroutines or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.storeBackend != "" {
		cfg.StoreBackend = o.storeBackend
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.sqlitePath != "" {
		cfg.SQLitePath = o.sqlitePath
	}
	if o.ownerAPIKey != "" {
		cfg.OwnerAPIKey = o.ownerAPIKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		}))
		slog.SetDefault(logger)
	}

	logger.Info("annai starting", "version", version, "port", cfg.Port, "store", cfg.StoreBackend)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	records, err := newRecordStore(cfg, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("store: %w", err)
	}

	b := bus.New(logger, cfg.EventHistoryLimit)
	memories := memory.NewStore(b)
	tools := tool.NewRegistry(b)
	tool.RegisterBuiltins(tools)
	results := cache.New[map[string]any]("results", cfg.CacheMaxSize, cfg.CacheTTL)
	drafts := action.NewManager(b, records, memories, cfg.DraftTTL, logger)

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		_ = records.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("auth: %w", err)
	}

	var ownerKeyHash string
	if cfg.OwnerAPIKey != "" {
		ownerKeyHash, err = auth.HashAPIKey(cfg.OwnerAPIKey)
		if err != nil {
			_ = records.Close(context.Background())
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("auth: hash owner key: %w", err)
		}
	} else {
		logger.Warn("no owner api key configured, token exchange disabled")
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	orch := orchestrator.New(orchestrator.Deps{
		Bus:      b,
		Router:   router.New(router.DefaultTriggers(), router.AgentGeneral),
		Executor: agent.NewExecutor(b, cfg.AgentTimeout, logger),
		Drafts:   drafts,
		Memories: memories,
		Cache:    results,
		Tools:    tools,
		Limiter:  limiter,
		Logger:   logger,
	})
	orch.Register(agent.NewMemoryAgent())
	orch.Register(agent.NewNavigatorAgent())
	orch.Register(agent.NewAnalystAgent())
	orch.Register(agent.NewGeneralAgent())

	mcpSrv := mcp.New(orch, memories, cfg.OwnerID, logger)

	srv := server.New(server.Config{
		Orchestrator:        orch,
		Memories:            memories,
		Drafts:              drafts,
		Records:             records,
		JWTMgr:              jwtMgr,
		Logger:              logger,
		Limiter:             limiter,
		MCPServer:           mcpSrv.MCPServer(),
		OwnerKeyHash:        ownerKeyHash,
		OwnerID:             cfg.OwnerID,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
	})

	// Wire public event hooks onto the bus.
	var unsubscribes []func()
	for _, h := range o.eventHooks {
		h := h
		unsubscribes = append(unsubscribes, b.On(h.event, func(ev model.Event) {
			h.fn(toPublicEvent(ev))
		}))
	}

	return &App{
		cfg:          cfg,
		srv:          srv,
		records:      records,
		drafts:       drafts,
		results:      results,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		unsubscribes: unsubscribes,
		logger:       logger,
	}, nil
}

// Run starts background sweeps and the HTTP server, then blocks until ctx
// is cancelled or a fatal server error occurs. On return, Shutdown has been
// called — callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	a.drafts.Start(a.cfg.DraftSweepEvery)
	a.results.Start(a.cfg.CacheTTL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.Background())
	})
	return g.Wait()
}

// Shutdown performs a graceful shutdown: stop accepting HTTP requests and
// drain in-flight ones, stop the background sweeps, then close the record
// store and OTEL provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("annai shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	cancel()

	for _, unsub := range a.unsubscribes {
		unsub()
	}
	a.drafts.Close()
	a.results.Close()
	_ = a.limiter.Close()

	if err := a.records.Close(context.Background()); err != nil {
		a.logger.Error("store close error", "error", err)
	}
	_ = a.otelShutdown(context.Background())

	a.logger.Info("annai stopped")
	return nil
}

func newRecordStore(cfg config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		logger.Info("record store: memory (volatile)")
		return store.NewMemStore(), nil
	case config.StoreSQLite:
		logger.Info("record store: sqlite", "path", cfg.SQLitePath)
		return store.NewSQLite(context.Background(), cfg.SQLitePath)
	case config.StorePostgres:
		logger.Info("record store: postgres")
		return store.NewPostgres(context.Background(), cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
