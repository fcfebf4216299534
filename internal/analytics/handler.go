package analytics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/contractmind/backend/internal/routes"
	"github.com/contractmind/backend/pkg/handlers"
)

// defaultWindowDays bounds the aggregation window when the caller does not
// pass one.
const defaultWindowDays = 7

// Handler provides HTTP handlers for analytics queries.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a new analytics HTTP handler.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger,
	}
}

// Routes returns the route group configuration for analytics endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/api/analytics",
		Description: "Usage statistics",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/user/{address}", Handler: h.User},
			{Method: "GET", Pattern: "/agent/{id}", Handler: h.Agent},
			{Method: "GET", Pattern: "/global", Handler: h.Global},
		},
	}
}

func since(r *http.Request) time.Time {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days <= 0 {
		days = defaultWindowDays
	}
	return time.Now().UTC().AddDate(0, 0, -days)
}

// User handles GET /api/analytics/user/{address}?days=.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	result, err := h.sys.UserStats(r.Context(), r.PathValue("address"), since(r))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Agent handles GET /api/analytics/agent/{id}?days=.
func (h *Handler) Agent(w http.ResponseWriter, r *http.Request) {
	result, err := h.sys.AgentStats(r.Context(), r.PathValue("id"), since(r))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Global handles GET /api/analytics/global?days=.
func (h *Handler) Global(w http.ResponseWriter, r *http.Request) {
	result, err := h.sys.GlobalStats(r.Context(), since(r))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
