package agents

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/contractmind/backend/internal/catalog"
	"github.com/contractmind/backend/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new agents repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "agents"),
	}
}

const agentProjection = `id, name, description, owner, target, abi, active, created_at, updated_at`

func scanAgent(s repository.Scanner) (Agent, error) {
	var (
		a     Agent
		idHex string
		abi   []byte
	)

	err := s.Scan(&idHex, &a.Name, &a.Description, &a.Owner, &a.Target, &abi, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}

	id, err := ParseID(idHex)
	if err != nil {
		return a, fmt.Errorf("stored agent id: %w", err)
	}
	a.ID = id
	a.ABI = json.RawMessage(abi)
	return a, nil
}

func (r *repo) Register(ctx context.Context, cmd RegisterCommand) (*Agent, error) {
	id, err := ParseID(cmd.ID)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(cmd.Owner) {
		return nil, fmt.Errorf("%w: owner %q", ErrInvalidAddress, cmd.Owner)
	}
	if !common.IsHexAddress(cmd.Target) {
		return nil, fmt.Errorf("%w: target %q", ErrInvalidAddress, cmd.Target)
	}
	if _, err := catalog.Parse(cmd.ABI, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidABI, err)
	}

	q := `
		INSERT INTO agents (id, name, description, owner, target, abi, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    owner = EXCLUDED.owner,
		    target = EXCLUDED.target,
		    abi = EXCLUDED.abi,
		    active = TRUE,
		    updated_at = NOW()
		RETURNING ` + agentProjection

	a, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Agent, error) {
		args := []any{id.String(), cmd.Name, cmd.Description, cmd.Owner, cmd.Target, []byte(cmd.ABI)}
		a, err := repository.QueryOne(ctx, tx, q, args, scanAgent)
		if err != nil {
			return a, err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM agent_function_authorizations WHERE agent_id = $1`, id.String()); err != nil {
			return a, fmt.Errorf("clear authorizations: %w", err)
		}
		for _, fn := range cmd.AuthorizedFunctions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO agent_function_authorizations (agent_id, function_name, authorized)
				VALUES ($1, $2, TRUE)`, id.String(), fn); err != nil {
				return a, fmt.Errorf("insert authorization %q: %w", fn, err)
			}
		}
		return a, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("agent registered", "id", a.ID, "name", a.Name, "target", a.Target)
	return &a, nil
}

func (r *repo) GetByID(ctx context.Context, id ID) (*Agent, error) {
	q := `SELECT ` + agentProjection + ` FROM agents WHERE id = $1`

	a, err := repository.QueryOne(ctx, r.db, q, []any{id.String()}, scanAgent)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &a, nil
}

func (r *repo) GetByName(ctx context.Context, name string) (*Agent, error) {
	q := `SELECT ` + agentProjection + ` FROM agents WHERE LOWER(name) = LOWER($1)`

	a, err := repository.QueryOne(ctx, r.db, q, []any{name}, scanAgent)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &a, nil
}

func (r *repo) List(ctx context.Context, activeOnly bool) ([]Agent, error) {
	q := `SELECT ` + agentProjection + ` FROM agents`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY name`

	list, err := repository.QueryMany(ctx, r.db, q, nil, scanAgent)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return list, nil
}

func (r *repo) Authorizations(ctx context.Context, id ID) (map[string]bool, error) {
	type row struct {
		fn         string
		authorized bool
	}

	rows, err := repository.QueryMany(ctx, r.db, `
		SELECT function_name, authorized
		FROM agent_function_authorizations
		WHERE agent_id = $1`,
		[]any{id.String()},
		func(s repository.Scanner) (row, error) {
			var v row
			err := s.Scan(&v.fn, &v.authorized)
			return v, err
		})
	if err != nil {
		return nil, fmt.Errorf("query authorizations: %w", err)
	}

	authorized := make(map[string]bool, len(rows))
	for _, v := range rows {
		authorized[v.fn] = v.authorized
	}
	return authorized, nil
}

func (r *repo) SetAuthorization(ctx context.Context, id ID, cmd AuthorizationCommand) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM agents WHERE id = $1`, id.String()).Scan(&exists); err != nil {
			return struct{}{}, err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO agent_function_authorizations (agent_id, function_name, authorized)
			VALUES ($1, $2, $3)
			ON CONFLICT (agent_id, function_name) DO UPDATE
			SET authorized = EXCLUDED.authorized, updated_at = NOW()`,
			id.String(), cmd.FunctionName, cmd.Authorized)
		return struct{}{}, err
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("authorization updated",
		"agent", id,
		"function", cmd.FunctionName,
		"authorized", cmd.Authorized)
	return nil
}

func (r *repo) Deactivate(ctx context.Context, id ID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		err := repository.ExecExpectOne(ctx, tx,
			`UPDATE agents SET active = FALSE, updated_at = NOW() WHERE id = $1`, id.String())
		return struct{}{}, err
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("agent deactivated", "id", id)
	return nil
}

func (r *repo) Delete(ctx context.Context, id ID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		err := repository.ExecExpectOne(ctx, tx, `DELETE FROM agents WHERE id = $1`, id.String())
		return struct{}{}, err
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("agent deleted", "id", id)
	return nil
}
