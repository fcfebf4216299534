package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/contractmind/backend/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new transactions repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "transactions"),
	}
}

const projection = `id, tx_hash, user_address, agent_id, target_address, function_name,
	calldata, execution_mode, status, block_number, gas_used, error, created_at, updated_at`

func scanTransaction(s repository.Scanner) (Transaction, error) {
	var (
		t           Transaction
		blockNumber sql.NullInt64
		gasUsed     sql.NullInt64
		errText     sql.NullString
	)

	err := s.Scan(&t.ID, &t.TxHash, &t.UserAddress, &t.AgentID, &t.TargetAddress,
		&t.FunctionName, &t.Calldata, &t.ExecutionMode, &t.Status,
		&blockNumber, &gasUsed, &errText, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}

	if blockNumber.Valid {
		t.BlockNumber = &blockNumber.Int64
	}
	if gasUsed.Valid {
		t.GasUsed = &gasUsed.Int64
	}
	if errText.Valid {
		t.Error = errText.String
	}
	return t, nil
}

func (r *repo) Insert(ctx context.Context, cmd InsertCommand) (*Transaction, error) {
	status := cmd.Status
	if status == "" {
		status = StatusPending
	}

	q := `
		INSERT INTO transactions (tx_hash, user_address, agent_id, target_address,
			function_name, calldata, execution_mode, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + projection

	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Transaction, error) {
		args := []any{cmd.TxHash, cmd.UserAddress, cmd.AgentID, cmd.TargetAddress,
			cmd.FunctionName, cmd.Calldata, cmd.ExecutionMode, status}
		return repository.QueryOne(ctx, tx, q, args, scanTransaction)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("transaction recorded", "hash", t.TxHash, "status", t.Status)
	return &t, nil
}

func (r *repo) GetByHash(ctx context.Context, txHash string) (*Transaction, error) {
	q := `SELECT ` + projection + ` FROM transactions WHERE tx_hash = $1`

	t, err := repository.QueryOne(ctx, r.db, q, []any{txHash}, scanTransaction)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &t, nil
}

func (r *repo) UpdateStatus(ctx context.Context, txHash string, update StatusUpdate) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		var errValue any
		if update.Error != "" {
			errValue = update.Error
		}
		err := repository.ExecExpectOne(ctx, tx, `
			UPDATE transactions
			SET status = $2, block_number = $3, gas_used = $4, error = $5, updated_at = NOW()
			WHERE tx_hash = $1`,
			txHash, update.Status, update.BlockNumber, update.GasUsed, errValue)
		return struct{}{}, err
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("transaction status updated", "hash", txHash, "status", update.Status)
	return nil
}

func (r *repo) ListByUser(ctx context.Context, agentID, userAddress string, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := `SELECT ` + projection + `
		FROM transactions
		WHERE agent_id = $1 AND user_address = $2
		ORDER BY created_at DESC
		LIMIT $3`

	list, err := repository.QueryMany(ctx, r.db, q, []any{agentID, userAddress, limit}, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return list, nil
}

// Upsert records the transaction if it is new, otherwise leaves the existing
// row for a status update.
func Upsert(ctx context.Context, sys System, cmd InsertCommand) error {
	_, err := sys.Insert(ctx, cmd)
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}
