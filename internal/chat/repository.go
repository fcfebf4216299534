package chat

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/contractmind/backend/pkg/repository"
)

// History defines the interface for chat turn storage. Windows are read
// most-recent-first and replayed chronologically so the parser sees the
// conversation in order.
type History interface {
	Append(ctx context.Context, cmd AppendCommand) (*Message, error)
	Window(ctx context.Context, agentID, userAddress string, limit int) ([]Message, error)
	List(ctx context.Context, agentID, userAddress string, limit int) ([]Message, error)
}

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewHistory creates a new chat history repository.
func NewHistory(db *sql.DB, logger *slog.Logger) History {
	return &repo{
		db:     db,
		logger: logger.With("system", "chat"),
	}
}

const projection = `id, agent_id, user_address, role, content, function_name,
	requires_transaction, tx_hash, created_at`

func scanMessage(s repository.Scanner) (Message, error) {
	var (
		m            Message
		functionName sql.NullString
		txHash       sql.NullString
	)

	err := s.Scan(&m.ID, &m.AgentID, &m.UserAddress, &m.Role, &m.Content,
		&functionName, &m.RequiresTransaction, &txHash, &m.CreatedAt)
	if err != nil {
		return m, err
	}

	m.FunctionName = functionName.String
	m.TxHash = txHash.String
	return m, nil
}

func (r *repo) Append(ctx context.Context, cmd AppendCommand) (*Message, error) {
	q := `
		INSERT INTO chat_messages (agent_id, user_address, role, content,
			function_name, requires_transaction, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + projection

	var functionName, txHash any
	if cmd.FunctionName != "" {
		functionName = cmd.FunctionName
	}
	if cmd.TxHash != "" {
		txHash = cmd.TxHash
	}

	m, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Message, error) {
		args := []any{cmd.AgentID, cmd.UserAddress, cmd.Role, cmd.Content,
			functionName, cmd.RequiresTransaction, txHash}
		return repository.QueryOne(ctx, tx, q, args, scanMessage)
	})
	if err != nil {
		return nil, fmt.Errorf("append chat message: %w", err)
	}

	r.logger.Debug("chat turn stored", "agent", m.AgentID, "role", m.Role)
	return &m, nil
}

func (r *repo) fetch(ctx context.Context, agentID, userAddress string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := `SELECT ` + projection + `
		FROM chat_messages
		WHERE agent_id = $1 AND user_address = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	messages, err := repository.QueryMany(ctx, r.db, q, []any{agentID, userAddress, limit}, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *repo) Window(ctx context.Context, agentID, userAddress string, limit int) ([]Message, error) {
	return r.fetch(ctx, agentID, userAddress, limit)
}

func (r *repo) List(ctx context.Context, agentID, userAddress string, limit int) ([]Message, error) {
	return r.fetch(ctx, agentID, userAddress, limit)
}
