// Package streams publishes pipeline telemetry to an on-chain data-streams
// contract. Publishing is fire-and-forget: the chat pipeline never waits on
// or fails because of telemetry.
package streams

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// Event schemas, hashed into schema identifiers on first use.
const (
	SchemaChatMessage      = "uint64 timestamp, bytes32 sessionId, address sender, bytes32 agentId, string role, string content, string intentAction"
	SchemaTransactionEvent = "uint64 timestamp, bytes32 txHash, address user, bytes32 agentId, string action, string status, uint256 gasUsed"
)

// ChatEvent is one chat message published to the stream.
type ChatEvent struct {
	Timestamp time.Time
	SessionID string
	Sender    string
	AgentID   string
	Role      string
	Content   string
	Action    string
}

// TransactionEvent is one transaction lifecycle update published to the stream.
type TransactionEvent struct {
	Timestamp time.Time
	TxHash    string
	User      string
	AgentID   string
	Action    string
	Status    string
	GasUsed   int64
}

// Sink receives pipeline telemetry. Implementations must not block the caller.
type Sink interface {
	PublishChat(ctx context.Context, event ChatEvent)
	PublishTransaction(ctx context.Context, event TransactionEvent)
}

// SchemaID returns the keccak256 identifier of an event schema.
func SchemaID(schema string) [32]byte {
	var id [32]byte
	copy(id[:], crypto.Keccak256([]byte(schema)))
	return id
}

// Disabled is a Sink that drops all events. Used when streams publishing is
// not configured.
type Disabled struct{}

func (Disabled) PublishChat(context.Context, ChatEvent)               {}
func (Disabled) PublishTransaction(context.Context, TransactionEvent) {}

// Publisher forwards events to a transport asynchronously. Failures are
// logged and dropped.
type Publisher struct {
	transport Transport
	logger    *slog.Logger
	wg        sync.WaitGroup

	chatSchema [32]byte
	txSchema   [32]byte
}

// Transport delivers one encoded event to the streams contract.
type Transport interface {
	Write(ctx context.Context, schemaID [32]byte, payload map[string]any) error
}

// NewPublisher creates an asynchronous stream publisher.
func NewPublisher(transport Transport, logger *slog.Logger) *Publisher {
	return &Publisher{
		transport:  transport,
		logger:     logger.With("system", "streams"),
		chatSchema: SchemaID(SchemaChatMessage),
		txSchema:   SchemaID(SchemaTransactionEvent),
	}
}

// PublishChat asynchronously writes a chat event.
func (p *Publisher) PublishChat(ctx context.Context, event ChatEvent) {
	p.publish(p.chatSchema, map[string]any{
		"timestamp":    event.Timestamp.Unix(),
		"sessionId":    event.SessionID,
		"sender":       event.Sender,
		"agentId":      event.AgentID,
		"role":         event.Role,
		"content":      event.Content,
		"intentAction": event.Action,
	})
}

// PublishTransaction asynchronously writes a transaction event.
func (p *Publisher) PublishTransaction(ctx context.Context, event TransactionEvent) {
	p.publish(p.txSchema, map[string]any{
		"timestamp": event.Timestamp.Unix(),
		"txHash":    event.TxHash,
		"user":      event.User,
		"agentId":   event.AgentID,
		"action":    event.Action,
		"status":    event.Status,
		"gasUsed":   event.GasUsed,
	})
}

func (p *Publisher) publish(schemaID [32]byte, payload map[string]any) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := p.transport.Write(ctx, schemaID, payload); err != nil {
			p.logger.Warn("stream write failed", "error", err)
		}
	}()
}

// Wait blocks until in-flight publishes complete. Used during shutdown.
func (p *Publisher) Wait() {
	p.wg.Wait()
}
