package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/contractmind/backend/pkg/repository"
)

// System defines the interface for analytics queries. The since parameter
// bounds each aggregation to transactions created on or after it; the zero
// time means no bound.
type System interface {
	UserStats(ctx context.Context, userAddress string, since time.Time) (*UserStats, error)
	AgentStats(ctx context.Context, agentID string, since time.Time) (*AgentStats, error)
	GlobalStats(ctx context.Context, since time.Time) (*GlobalStats, error)
}

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new analytics repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "analytics"),
	}
}

type totals struct {
	transactions int64
	distinct     int64
	gasUsed      int64
	successRate  float64
	avgGas       int64
}

func scanTotals(s repository.Scanner) (totals, error) {
	var (
		t           totals
		successRate sql.NullFloat64
		avgGas      sql.NullFloat64
	)
	if err := s.Scan(&t.transactions, &t.distinct, &t.gasUsed, &successRate, &avgGas); err != nil {
		return t, err
	}
	t.successRate = successRate.Float64
	t.avgGas = int64(avgGas.Float64)
	return t, nil
}

func scanUsage(s repository.Scanner) (AgentUsage, error) {
	var u AgentUsage
	err := s.Scan(&u.Name, &u.Count)
	return u, err
}

func (r *repo) UserStats(ctx context.Context, userAddress string, since time.Time) (*UserStats, error) {
	t, err := repository.QueryOne(ctx, r.db, `
		SELECT COUNT(*),
			COUNT(DISTINCT agent_id),
			COALESCE(SUM(gas_used), 0),
			AVG(CASE WHEN status = 'confirmed' THEN 1.0 ELSE 0.0 END),
			AVG(gas_used)
		FROM transactions
		WHERE user_address = $1 AND created_at >= $2`,
		[]any{userAddress, floor(since)}, scanTotals)
	if err != nil {
		return nil, fmt.Errorf("user totals: %w", err)
	}

	favorites, err := repository.QueryMany(ctx, r.db, `
		SELECT a.name, COUNT(*) AS calls
		FROM transactions t
		JOIN agents a ON a.id = t.agent_id
		WHERE t.user_address = $1
		GROUP BY a.name
		ORDER BY calls DESC
		LIMIT 5`,
		[]any{userAddress}, scanUsage)
	if err != nil {
		return nil, fmt.Errorf("favorite agents: %w", err)
	}

	recent, err := repository.QueryMany(ctx, r.db, `
		SELECT t.function_name, COALESCE(a.name, 'unknown'), t.created_at, t.status
		FROM transactions t
		LEFT JOIN agents a ON a.id = t.agent_id
		WHERE t.user_address = $1
		ORDER BY t.created_at DESC
		LIMIT 10`,
		[]any{userAddress}, scanActivity)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}

	return &UserStats{
		UserAddress:       userAddress,
		TotalTransactions: t.transactions,
		TotalGasUsed:      t.gasUsed,
		SuccessRate:       t.successRate,
		FavoriteAgents:    favorites,
		RecentActivity:    recent,
	}, nil
}

func scanActivity(s repository.Scanner) (Activity, error) {
	var (
		a         Activity
		action    sql.NullString
		createdAt time.Time
		status    string
	)
	if err := s.Scan(&action, &a.Protocol, &createdAt, &status); err != nil {
		return a, err
	}
	a.Action = action.String
	if a.Action == "" {
		a.Action = "unknown"
	}
	a.Timestamp = createdAt.UTC().Format(time.RFC3339)
	a.Success = status == "confirmed"
	return a, nil
}

func (r *repo) AgentStats(ctx context.Context, agentID string, since time.Time) (*AgentStats, error) {
	var name sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT name FROM agents WHERE id = $1`, agentID).Scan(&name)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("agent name: %w", err)
	}
	agentName := name.String
	if agentName == "" {
		agentName = "Unknown Agent"
	}

	t, err := repository.QueryOne(ctx, r.db, `
		SELECT COUNT(*),
			COUNT(DISTINCT user_address),
			COALESCE(SUM(gas_used), 0),
			AVG(CASE WHEN status = 'confirmed' THEN 1.0 ELSE 0.0 END),
			AVG(gas_used)
		FROM transactions
		WHERE agent_id = $1 AND created_at >= $2`,
		[]any{agentID, floor(since)}, scanTotals)
	if err != nil {
		return nil, fmt.Errorf("agent totals: %w", err)
	}

	return &AgentStats{
		AgentID:           agentID,
		AgentName:         agentName,
		TotalCalls:        t.transactions,
		UniqueUsers:       t.distinct,
		TotalGasUsed:      t.gasUsed,
		SuccessRate:       t.successRate,
		AverageGasPerCall: t.avgGas,
	}, nil
}

func (r *repo) GlobalStats(ctx context.Context, since time.Time) (*GlobalStats, error) {
	t, err := repository.QueryOne(ctx, r.db, `
		SELECT COUNT(*),
			COUNT(DISTINCT user_address),
			COALESCE(SUM(gas_used), 0),
			AVG(CASE WHEN status = 'confirmed' THEN 1.0 ELSE 0.0 END),
			AVG(gas_used)
		FROM transactions
		WHERE created_at >= $1`,
		[]any{floor(since)}, scanTotals)
	if err != nil {
		return nil, fmt.Errorf("global totals: %w", err)
	}

	var totalAgents, last24h int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM agents WHERE active`).Scan(&totalAgents); err != nil {
		return nil, fmt.Errorf("agent count: %w", err)
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE created_at >= NOW() - INTERVAL '24 hours'`).Scan(&last24h); err != nil {
		return nil, fmt.Errorf("24h count: %w", err)
	}

	top, err := repository.QueryMany(ctx, r.db, `
		SELECT a.name, COUNT(*) AS calls
		FROM transactions t
		JOIN agents a ON a.id = t.agent_id
		GROUP BY a.name
		ORDER BY calls DESC
		LIMIT 10`,
		nil, scanUsage)
	if err != nil {
		return nil, fmt.Errorf("top agents: %w", err)
	}

	return &GlobalStats{
		TotalTransactions:  t.transactions,
		TotalUsers:         t.distinct,
		TotalAgents:        totalAgents,
		TotalGasUsed:       t.gasUsed,
		SuccessRate:        t.successRate,
		TransactionsLast24: last24h,
		TopAgents:          top,
	}, nil
}

// floor widens the zero time into a bound every row satisfies, keeping the
// aggregate queries to one shape.
func floor(since time.Time) time.Time {
	if since.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return since
}
