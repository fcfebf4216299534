// Package analytics aggregates transaction records into per-user, per-agent,
// and platform-wide statistics.
package analytics

// AgentUsage is one agent's share of activity.
type AgentUsage struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Activity is one recent transaction summarized for display.
type Activity struct {
	Action    string `json:"action"`
	Protocol  string `json:"protocol"`
	Timestamp string `json:"timestamp"`
	Success   bool   `json:"success"`
}

// UserStats summarizes one user's transaction history.
type UserStats struct {
	UserAddress       string       `json:"user_address"`
	TotalTransactions int64        `json:"total_transactions"`
	TotalGasUsed      int64        `json:"total_gas_used"`
	SuccessRate       float64      `json:"success_rate"`
	FavoriteAgents    []AgentUsage `json:"favorite_agents"`
	RecentActivity    []Activity   `json:"recent_activity"`
}

// AgentStats summarizes the traffic through one agent.
type AgentStats struct {
	AgentID           string  `json:"agent_id"`
	AgentName         string  `json:"agent_name"`
	TotalCalls        int64   `json:"total_calls"`
	UniqueUsers       int64   `json:"unique_users"`
	TotalGasUsed      int64   `json:"total_gas_used"`
	SuccessRate       float64 `json:"success_rate"`
	AverageGasPerCall int64   `json:"average_gas_per_call"`
}

// GlobalStats summarizes platform-wide activity.
type GlobalStats struct {
	TotalTransactions  int64        `json:"total_transactions"`
	TotalUsers         int64        `json:"total_users"`
	TotalAgents        int64        `json:"total_agents"`
	TotalGasUsed       int64        `json:"total_gas_used"`
	SuccessRate        float64      `json:"success_rate"`
	TransactionsLast24 int64        `json:"transactions_last_24h"`
	TopAgents          []AgentUsage `json:"top_agents"`
}
