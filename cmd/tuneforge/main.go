package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	cfhttp "github.com/Strob0t/TuneForge/internal/adapter/http"
	cfmcp "github.com/Strob0t/TuneForge/internal/adapter/mcp"
	cfnats "github.com/Strob0t/TuneForge/internal/adapter/nats"
	"github.com/Strob0t/TuneForge/internal/adapter/natskv"
	"github.com/Strob0t/TuneForge/internal/adapter/otel"
	"github.com/Strob0t/TuneForge/internal/adapter/postgres"
	"github.com/Strob0t/TuneForge/internal/adapter/ristretto"
	"github.com/Strob0t/TuneForge/internal/adapter/tiered"
	"github.com/Strob0t/TuneForge/internal/adapter/toolrunner"
	"github.com/Strob0t/TuneForge/internal/adapter/ws"
	"github.com/Strob0t/TuneForge/internal/config"
	"github.com/Strob0t/TuneForge/internal/logger"
	"github.com/Strob0t/TuneForge/internal/middleware"
	"github.com/Strob0t/TuneForge/internal/port/cache"
	"github.com/Strob0t/TuneForge/internal/port/messagequeue"
	"github.com/Strob0t/TuneForge/internal/resilience"
	"github.com/Strob0t/TuneForge/internal/service"
)

// version is reported by the MCP endpoint. Overridden at build time with
// -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	var err error
	args := os.Args[1:]
	switch {
	case len(args) > 0 && args[0] == "migrate":
		err = runMigrate(args[1:])
	case len(args) > 0 && args[0] == "admin":
		err = runAdmin(args[1:])
	case len(args) > 0 && args[0] == "serve":
		err = runServe(args[1:])
	case len(args) > 0 && !strings.HasPrefix(args[0], "-"):
		err = fmt.Errorf("unknown command %q (want serve, migrate or admin)", args[0])
	default:
		err = runServe(args)
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func runServe(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"file", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"nats", cfg.NATS.Enabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownOTEL, err := otel.Init(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	var metrics *otel.Metrics
	if cfg.OTEL.Enabled {
		if metrics, err = otel.NewMetrics(); err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	applied, err := postgres.RunMigrations(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied", "count", applied)

	l1, err := ristretto.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer l1.Close()

	var (
		queue       messagequeue.Queue
		natsQueue   *cfnats.Queue
		userCache   cache.Cache = l1
		idempotency cache.Cache
	)
	if cfg.NATS.Enabled() {
		natsQueue, err = cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := natsQueue.Drain(); err != nil {
				slog.Warn("nats drain failed", "error", err)
				_ = natsQueue.Close()
			}
		}()
		queue = natsQueue

		l2, err := natskv.Open(ctx, natsQueue.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			return fmt.Errorf("cache l2: %w", err)
		}
		userCache = tiered.New(l1, l2, cfg.Cache.L1TTL)

		idem, err := natskv.Open(ctx, natsQueue.JetStream(), cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
		if err != nil {
			return fmt.Errorf("idempotency store: %w", err)
		}
		idempotency = idem
	} else {
		slog.Info("nats disabled, events stay in-process")
	}

	// --- Services ---

	store := postgres.NewStore(pool)

	var userSvc *service.UserService
	hub := ws.NewHub(cfg.Server.CORSOrigin, func(r *http.Request) (string, error) {
		u, err := userSvc.Resolve(r.Context(), middleware.RequestIP(r))
		if err != nil {
			return "", err
		}
		return u.ID, nil
	})
	defer hub.Close()

	events := service.NewEventBus(queue, hub)
	cancelRelay, err := events.Relay(ctx)
	if err != nil {
		return fmt.Errorf("event relay: %w", err)
	}
	defer cancelRelay()

	userSvc = service.NewUserService(store, userCache, cfg.Cache.L2TTL, events)
	runner := toolrunner.New(cfg.Tools, resilience.NewSet(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	handlers := &cfhttp.Handlers{
		Users:         userSvc,
		Workspaces:    service.NewWorkspaceService(store, events),
		Datasets:      service.NewDatasetService(store, events),
		Conversations: service.NewConversationService(store, events),
		Tools:         service.NewToolService(store, runner, metrics, events),
		Exports:       service.NewExportService(store, metrics, events),
		MaxBodySize:   cfg.Server.MaxBodySize,
	}

	// --- HTTP ---

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	routerCfg := cfhttp.RouterConfig{
		CORSOrigin:     cfg.Server.CORSOrigin,
		TrustProxy:     cfg.Server.TrustProxy,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimiter:    limiter,
		Idempotency:    idempotency,
		IdempotencyTTL: cfg.Idempotency.TTL,
		Telemetry:      cfg.OTEL.Enabled,
		ServiceName:    cfg.OTEL.ServiceName,
		Health:         healthHandler(pool, natsQueue),
		WS:             hub.HandleWS,
	}
	if cfg.MCP.Enabled {
		mcpSrv := cfmcp.NewServer(cfmcp.ServerConfig{Name: cfg.MCP.Name, Version: version}, cfmcp.ServerDeps{
			Users:      handlers.Users,
			Workspaces: handlers.Workspaces,
			Datasets:   handlers.Datasets,
			Exports:    handlers.Exports,
		})
		routerCfg.MCP = mcpSrv.Handler()
		slog.Info("mcp endpoint enabled", "path", "/mcp")
	}
	r := cfhttp.NewRouter(handlers, routerCfg)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// healthHandler reports whether PostgreSQL answers and, when configured,
// whether NATS is connected. Any failing dependency turns the reply into 503.
func healthHandler(pool *pgxpool.Pool, queue *cfnats.Queue) http.HandlerFunc {
	type healthStatus struct {
		Status   string `json:"status"`
		Postgres string `json:"postgres"`
		NATS     string `json:"nats"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := healthStatus{Status: "ok", Postgres: "ok", NATS: "disabled"}
		code := http.StatusOK
		if err := pool.Ping(ctx); err != nil {
			status.Postgres = "unreachable"
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		if queue != nil {
			status.NATS = "ok"
			if !queue.IsConnected() {
				status.NATS = "disconnected"
				status.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
