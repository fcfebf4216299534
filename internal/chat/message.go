// Package chat orchestrates the message pipeline: intent parsing, the
// read-query and transaction branches, history persistence, and transaction
// result reporting.
package chat

import (
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one persisted chat turn between a user and an agent.
type Message struct {
	ID                  int64     `json:"id"`
	AgentID             string    `json:"agent_id"`
	UserAddress         string    `json:"user_address"`
	Role                string    `json:"role"`
	Content             string    `json:"content"`
	FunctionName        string    `json:"function_name,omitempty"`
	RequiresTransaction bool      `json:"requires_transaction,omitempty"`
	TxHash              string    `json:"tx_hash,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// AppendCommand carries the fields for persisting one chat turn.
type AppendCommand struct {
	AgentID             string
	UserAddress         string
	Role                string
	Content             string
	FunctionName        string
	RequiresTransaction bool
	TxHash              string
}
