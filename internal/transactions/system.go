package transactions

import (
	"context"
)

// System defines the interface for transaction record storage.
type System interface {
	Insert(ctx context.Context, cmd InsertCommand) (*Transaction, error)
	GetByHash(ctx context.Context, txHash string) (*Transaction, error)
	UpdateStatus(ctx context.Context, txHash string, update StatusUpdate) error
	ListByUser(ctx context.Context, agentID, userAddress string, limit int) ([]Transaction, error)
}
