package http

import (
	"log/slog"
	"net/http"

	"github.com/Strob0t/TuneForge/internal/domain/tool"
	"github.com/Strob0t/TuneForge/internal/domain/user"
	"github.com/Strob0t/TuneForge/internal/domain/workspace"
	"github.com/Strob0t/TuneForge/internal/middleware"
	"github.com/Strob0t/TuneForge/internal/service"
)

const defaultMaxBodySize = 1 << 20 // 1 MB

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Users         *service.UserService
	Workspaces    *service.WorkspaceService
	Datasets      *service.DatasetService
	Conversations *service.ConversationService
	Tools         *service.ToolService
	Exports       *service.ExportService
	MaxBodySize   int64
}

// caller resolves the registered user behind the request's client IP and
// writes 401 when there is none.
func (h *Handlers) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	u, err := h.Users.Resolve(r.Context(), middleware.RequestIP(r))
	if err != nil {
		writeDomainError(w, err, "user")
		return "", false
	}
	return u.ID, true
}

func (h *Handlers) bodyLimit() int64 {
	if h.MaxBodySize > 0 {
		return h.MaxBodySize
	}
	return defaultMaxBodySize
}

// RegisterUser handles POST /api/v1/users/register.
func (h *Handlers) RegisterUser(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.RegisterRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	u, err := h.Users.Register(r.Context(), middleware.RequestIP(r), req)
	if err != nil {
		writeDomainError(w, err, "username")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// Me handles GET /api/v1/users/me.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Resolve(r.Context(), middleware.RequestIP(r))
	if err != nil {
		writeDomainError(w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ListWorkspaces handles GET /api/v1/workspaces.
func (h *Handlers) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}
	list, err := h.Workspaces.List(r.Context(), callerID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateWorkspace handles POST /api/v1/workspaces.
func (h *Handlers) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[workspace.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}
	ws, err := h.Workspaces.Create(r.Context(), callerID, req)
	if err != nil {
		writeDomainError(w, err, "workspace")
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

// ExportDataset handles GET /api/v1/datasets/{id}/export?format=json|jsonl.
func (h *Handlers) ExportDataset(w http.ResponseWriter, r *http.Request) {
	file, err := h.Exports.Export(r.Context(), urlParam(r, "id"), r.URL.Query().Get("format"))
	if err != nil {
		writeDomainError(w, err, "dataset")
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Body); err != nil {
		slog.WarnContext(r.Context(), "write response failed", "error", err)
	}
}

// ToolSchema handles POST /api/v1/tools/schema.
func (h *Handlers) ToolSchema(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tool.SchemaRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	resp, err := h.Tools.Schema(req)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExecuteTool handles POST /api/v1/tools/{id}/execute. The upstream body is
// passed through unchanged.
func (h *Handlers) ExecuteTool(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tool.ExecuteRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}
	res, err := h.Tools.Execute(r.Context(), callerID, urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "tool")
		return
	}
	ct := res.ContentType
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Body); err != nil {
		slog.WarnContext(r.Context(), "write response failed", "error", err)
	}
}
