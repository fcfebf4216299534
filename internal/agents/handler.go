package agents

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/contractmind/backend/internal/routes"
	"github.com/contractmind/backend/pkg/handlers"
)

// Handler provides HTTP handlers for agent registration, lookup, and
// authorization management.
type Handler struct {
	sys       System
	directory *Directory
	logger    *slog.Logger
}

// NewHandler creates a new agents HTTP handler.
func NewHandler(sys System, directory *Directory, logger *slog.Logger) *Handler {
	return &Handler{
		sys:       sys,
		directory: directory,
		logger:    logger,
	}
}

// Routes returns the route group configuration for agent endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/api/agents",
		Description: "Agent registration and authorization",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Register},
			{Method: "GET", Pattern: "/{ref}", Handler: h.Find},
			{Method: "GET", Pattern: "/{ref}/functions", Handler: h.Functions},
			{Method: "PUT", Pattern: "/{ref}/authorizations", Handler: h.SetAuthorization},
			{Method: "POST", Pattern: "/{ref}/deactivate", Handler: h.Deactivate},
			{Method: "DELETE", Pattern: "/{ref}", Handler: h.Delete},
		},
	}
}

// List handles GET /api/agents. Pass active=true to filter to active agents.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	result, err := h.sys.List(r.Context(), activeOnly)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Register handles POST /api/agents to register or re-register an agent.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var cmd RegisterCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.Register(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	h.directory.Invalidate(r.Context(), result)
	handlers.RespondJSON(w, http.StatusCreated, result)
}

// Find handles GET /api/agents/{ref} to resolve an agent by ID or name.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	result, err := h.directory.Resolve(r.Context(), r.PathValue("ref"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Functions handles GET /api/agents/{ref}/functions to list the agent's
// callable catalog with authorization status.
func (h *Handler) Functions(w http.ResponseWriter, r *http.Request) {
	agent, err := h.directory.Resolve(r.Context(), r.PathValue("ref"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	cat, err := h.directory.Catalog(r.Context(), agent)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"agent":     agent.ID,
		"functions": cat.Functions(),
	})
}

// SetAuthorization handles PUT /api/agents/{ref}/authorizations to toggle
// mediated execution for a single function.
func (h *Handler) SetAuthorization(w http.ResponseWriter, r *http.Request) {
	agent, err := h.directory.Resolve(r.Context(), r.PathValue("ref"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	var cmd AuthorizationCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if cmd.FunctionName == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("function_name required"))
		return
	}

	if err := h.sys.SetAuthorization(r.Context(), agent.ID, cmd); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	h.directory.Invalidate(r.Context(), agent)
	w.WriteHeader(http.StatusNoContent)
}

// Deactivate handles POST /api/agents/{ref}/deactivate to soft-disable an agent.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	agent, err := h.directory.Resolve(r.Context(), r.PathValue("ref"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if err := h.sys.Deactivate(r.Context(), agent.ID); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	h.directory.Invalidate(r.Context(), agent)
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/agents/{ref} to remove an agent and its
// authorizations.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	agent, err := h.directory.Resolve(r.Context(), r.PathValue("ref"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if err := h.sys.Delete(r.Context(), agent.ID); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	h.directory.Invalidate(r.Context(), agent)
	w.WriteHeader(http.StatusNoContent)
}
