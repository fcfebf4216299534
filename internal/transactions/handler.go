package transactions

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/contractmind/backend/internal/routes"
	"github.com/contractmind/backend/pkg/handlers"
)

// Handler provides HTTP handlers for transaction history.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a new transactions HTTP handler.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger,
	}
}

// Routes returns the route group configuration for transaction endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/api/transactions",
		Description: "Transaction records",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{hash}", Handler: h.Find},
		},
	}
}

// List handles GET /api/transactions?agent_id=&user_address=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	agentID := query.Get("agent_id")
	userAddress := query.Get("user_address")
	if agentID == "" || userAddress == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			errors.New("agent_id and user_address required"))
		return
	}

	limit, _ := strconv.Atoi(query.Get("limit"))

	result, err := h.sys.ListByUser(r.Context(), agentID, userAddress, limit)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find handles GET /api/transactions/{hash}.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	result, err := h.sys.GetByHash(r.Context(), r.PathValue("hash"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
