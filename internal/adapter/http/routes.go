package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/TuneForge/internal/adapter/otel"
	"github.com/Strob0t/TuneForge/internal/middleware"
	"github.com/Strob0t/TuneForge/internal/port/cache"
)

// RouterConfig selects the middleware wrapped around the API.
type RouterConfig struct {
	CORSOrigin     string
	TrustProxy     bool
	RequestTimeout time.Duration

	// RateLimiter, when set, limits requests per client IP.
	RateLimiter *middleware.RateLimiter
	// Idempotency, when set, stores responses for Idempotency-Key replays.
	Idempotency    cache.Cache
	IdempotencyTTL time.Duration
	// Telemetry adds otelhttp server spans named after ServiceName.
	Telemetry   bool
	ServiceName string

	Health http.HandlerFunc
	WS     http.HandlerFunc
	// MCP, when set, is mounted at /mcp.
	MCP http.Handler
}

// NewRouter builds the chi router: request id, client IP, logging and
// recovery for everything, then CORS, rate limiting and idempotency for the
// API routes.
func NewRouter(h *Handlers, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP(cfg.TrustProxy))
	r.Use(Logger)
	if cfg.Telemetry {
		r.Use(otel.HTTPMiddleware(cfg.ServiceName))
	}
	r.Use(chimw.Recoverer)
	r.Use(CORS(cfg.CORSOrigin))

	if cfg.Health != nil {
		r.Get("/health", cfg.Health)
	}
	if cfg.WS != nil {
		r.Get("/ws", cfg.WS)
	}
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
	}

	r.Group(func(r chi.Router) {
		r.Use(SecurityHeaders)
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Handler)
		}
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}
		if cfg.Idempotency != nil {
			r.Use(middleware.Idempotency(cfg.Idempotency, cfg.IdempotencyTTL))
		}
		MountRoutes(r, h)
	})
	return r
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Users
		r.Post("/users/register", h.RegisterUser)
		r.Get("/users/me", h.Me)

		// Workspaces
		r.Get("/workspaces", h.ListWorkspaces)
		r.Post("/workspaces", h.CreateWorkspace)
		r.Get("/workspaces/{id}", handleGet(h, "workspace", h.Workspaces.Get))
		r.Put("/workspaces/{id}", handleUpdate(h, "workspace", h.Workspaces.Update))
		r.Delete("/workspaces/{id}", handleDelete(h, "workspace", h.Workspaces.Delete))

		// Datasets (nested under workspaces)
		r.Get("/workspaces/{id}/datasets", handleListByParam(h, "id", "workspace", h.Datasets.List))
		r.Post("/workspaces/{id}/datasets", handleCreateIn(h, "workspace", h.Datasets.Create))

		// Tools (nested under workspaces)
		r.Get("/workspaces/{id}/tools", handleListByParam(h, "id", "workspace", h.Tools.List))
		r.Post("/workspaces/{id}/tools", handleCreateIn(h, "tool", h.Tools.Create))

		// Datasets (direct access)
		r.Get("/datasets/{id}", handleGet(h, "dataset", h.Datasets.Get))
		r.Put("/datasets/{id}", handleUpdate(h, "dataset", h.Datasets.Update))
		r.Delete("/datasets/{id}", handleDelete(h, "dataset", h.Datasets.Delete))
		r.Get("/datasets/{id}/export", h.ExportDataset)

		// Training conversations (nested under datasets)
		r.Get("/datasets/{id}/conversations", handleListByParam(h, "id", "dataset", h.Conversations.List))
		r.Post("/datasets/{id}/conversations", handleCreateIn(h, "dataset", h.Conversations.Create))

		// Training conversations (direct access)
		r.Get("/conversations/{id}", handleGet(h, "conversation", h.Conversations.Get))
		r.Put("/conversations/{id}", handleUpdate(h, "conversation", h.Conversations.Update))
		r.Delete("/conversations/{id}", handleDelete(h, "conversation", h.Conversations.Delete))

		// Messages
		r.Get("/conversations/{id}/messages", handleListByParam(h, "id", "conversation", h.Conversations.ListMessages))
		r.Post("/conversations/{id}/messages", handleCreateIn(h, "conversation", h.Conversations.AppendMessage))
		r.Get("/messages/{id}", handleGet(h, "message", h.Conversations.GetMessage))
		r.Put("/messages/{id}", handleUpdate(h, "message", h.Conversations.UpdateMessage))
		r.Delete("/messages/{id}", handleDelete(h, "message", h.Conversations.DeleteMessage))

		// Tools (direct access)
		r.Post("/tools/schema", h.ToolSchema)
		r.Get("/tools/{id}", handleGet(h, "tool", h.Tools.Get))
		r.Put("/tools/{id}", handleUpdate(h, "tool", h.Tools.Update))
		r.Delete("/tools/{id}", handleDelete(h, "tool", h.Tools.Delete))
		r.Post("/tools/{id}/execute", h.ExecuteTool)
	})
}
