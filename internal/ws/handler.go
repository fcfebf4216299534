package ws

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/contractmind/backend/internal/chat"
	"github.com/contractmind/backend/internal/routes"
	"github.com/contractmind/backend/pkg/handlers"
)

// clientMessage is the envelope for messages received from the browser.
type clientMessage struct {
	Type         string `json:"type"`
	AgentRef     string `json:"agentId"`
	Message      string `json:"message"`
	TxHash       string `json:"txHash"`
	FunctionName string `json:"functionName"`
}

// Handler provides the WebSocket chat endpoint and connection status.
type Handler struct {
	service  *chat.Service
	registry *Registry
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(service *chat.Service, registry *Registry, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With("system", "ws"),
	}
}

// Routes returns the route group configuration for WebSocket endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/ws",
		Description: "Real-time chat",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/chat/{address}", Handler: h.Chat},
			{Method: "GET", Pattern: "/status", Handler: h.Status},
		},
	}
}

// Status handles GET /ws/status with connection statistics.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, h.registry.Snapshot())
}

// Chat handles GET /ws/chat/{address}, upgrading to a WebSocket session that
// drives the chat pipeline.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	userAddress := r.PathValue("address")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "user", userAddress, "error", err)
		return
	}

	connID := uuid.NewString()
	h.registry.Add(userAddress, connID, conn)
	defer func() {
		h.registry.Remove(userAddress, connID)
		conn.Close()
	}()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "user", userAddress, "error", err)
			}
			return
		}

		h.dispatch(r, conn, userAddress, msg)
	}
}

func (h *Handler) dispatch(r *http.Request, conn *websocket.Conn, userAddress string, msg clientMessage) {
	switch msg.Type {
	case "chat":
		h.handleChat(r, conn, userAddress, msg)
	case "transaction_sent":
		h.handleTransactionSent(r, conn, userAddress, msg)
	case "ping":
		h.send(conn, userAddress, map[string]any{"type": "pong"})
	default:
		h.send(conn, userAddress, map[string]any{
			"type":    "error",
			"message": fmt.Sprintf("Unknown message type: %s", msg.Type),
		})
	}
}

func (h *Handler) handleChat(r *http.Request, conn *websocket.Conn, userAddress string, msg clientMessage) {
	h.send(conn, userAddress, map[string]any{
		"type":    "thinking",
		"message": "Processing your request...",
	})

	reply, err := h.service.Process(r.Context(), chat.ProcessCommand{
		AgentRef:    msg.AgentRef,
		Message:     msg.Message,
		UserAddress: userAddress,
	})
	if err != nil {
		h.logger.Warn("chat processing failed", "user", userAddress, "error", err)
		h.send(conn, userAddress, map[string]any{
			"type":    "error",
			"message": fmt.Sprintf("Error: %v", err),
		})
		return
	}

	if reply.IsPreparedTransaction {
		h.send(conn, userAddress, map[string]any{
			"type":        "transaction_ready",
			"transaction": reply.Transaction,
			"message":     reply.Response,
		})
		return
	}

	h.send(conn, userAddress, map[string]any{
		"type":    "chat_response",
		"message": reply.Response,
	})
}

func (h *Handler) handleTransactionSent(r *http.Request, conn *websocket.Conn, userAddress string, msg clientMessage) {
	h.send(conn, userAddress, map[string]any{
		"type":    "transaction_monitoring",
		"tx_hash": msg.TxHash,
		"message": "Monitoring transaction...",
	})

	reply, err := h.service.RecordTransactionResult(r.Context(), chat.ResultCommand{
		AgentRef:     msg.AgentRef,
		TxHash:       msg.TxHash,
		UserAddress:  userAddress,
		FunctionName: msg.FunctionName,
	})
	if err != nil {
		h.logger.Warn("transaction result failed", "user", userAddress, "hash", msg.TxHash, "error", err)
		h.send(conn, userAddress, map[string]any{
			"type":    "error",
			"message": fmt.Sprintf("Error: %v", err),
		})
		return
	}

	h.send(conn, userAddress, map[string]any{
		"type":    "transaction_status",
		"tx_hash": msg.TxHash,
		"message": reply.Response,
	})
}

func (h *Handler) send(conn *websocket.Conn, userAddress string, message any) {
	if err := conn.WriteJSON(message); err != nil {
		h.logger.Warn("websocket write failed", "user", userAddress, "error", err)
	}
}
