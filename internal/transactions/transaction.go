// Package transactions persists the lifecycle of user-signed transactions:
// inserted as pending when the frontend reports a hash, updated once the
// receipt lands.
package transactions

import (
	"time"
)

// Transaction statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Transaction is one reported on-chain transaction and its outcome.
type Transaction struct {
	ID            int64     `json:"id"`
	TxHash        string    `json:"tx_hash"`
	UserAddress   string    `json:"user_address"`
	AgentID       string    `json:"agent_id"`
	TargetAddress string    `json:"target_address"`
	FunctionName  string    `json:"function_name"`
	Calldata      string    `json:"calldata,omitempty"`
	ExecutionMode string    `json:"execution_mode"`
	Status        string    `json:"status"`
	BlockNumber   *int64    `json:"block_number,omitempty"`
	GasUsed       *int64    `json:"gas_used,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InsertCommand carries the fields for recording a reported transaction.
type InsertCommand struct {
	TxHash        string
	UserAddress   string
	AgentID       string
	TargetAddress string
	FunctionName  string
	Calldata      string
	ExecutionMode string
	Status        string
}

// StatusUpdate carries receipt-derived fields for a recorded transaction.
type StatusUpdate struct {
	Status      string
	BlockNumber *int64
	GasUsed     *int64
	Error       string
}
