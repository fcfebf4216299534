package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/contractmind/backend/internal/agents"
	"github.com/contractmind/backend/internal/routes"
	"github.com/contractmind/backend/pkg/handlers"
)

// Handler provides HTTP handlers for the chat surface.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new chat HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Routes returns the route group configuration for chat endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/api/chat",
		Description: "Chat pipeline",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Process},
			{Method: "POST", Pattern: "/transaction-result", Handler: h.TransactionResult},
			{Method: "GET", Pattern: "/history", Handler: h.History},
		},
	}
}

// Process handles POST /api/chat with one user message.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	var cmd ProcessCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(cmd.Message) == "" || cmd.AgentRef == "" || cmd.UserAddress == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			errors.New("agentId, message, and userAddress required"))
		return
	}

	result, err := h.service.Process(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, agents.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// TransactionResult handles POST /api/chat/transaction-result reporting a
// signed and broadcast transaction hash.
func (h *Handler) TransactionResult(w http.ResponseWriter, r *http.Request) {
	var cmd ResultCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if cmd.TxHash == "" || cmd.AgentRef == "" || cmd.UserAddress == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			errors.New("agentId, txHash, and userAddress required"))
		return
	}

	result, err := h.service.RecordTransactionResult(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, agents.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// History handles GET /api/chat/history?agent_id=&user_address=&limit=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	agentRef := query.Get("agent_id")
	userAddress := query.Get("user_address")
	if agentRef == "" || userAddress == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			errors.New("agent_id and user_address required"))
		return
	}

	limit, _ := strconv.Atoi(query.Get("limit"))

	result, err := h.service.HistoryFor(r.Context(), agentRef, userAddress, limit)
	if err != nil {
		handlers.RespondError(w, h.logger, agents.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
