// Package agents manages the smart-contract agent directory: Postgres
// persistence, Redis caching, on-chain registry fallback, and the REST
// surface for registration and authorization management.
package agents

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/contractmind/backend/internal/catalog"
)

// Agent is a registered smart-contract agent: a named target contract with
// an ABI and a per-function authorization list controlled by its owner.
type Agent struct {
	ID          ID              `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Owner       string          `json:"owner"`
	Target      string          `json:"target"`
	ABI         json.RawMessage `json:"abi,omitempty"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TargetAddress returns the agent's target contract address.
func (a *Agent) TargetAddress() common.Address {
	return common.HexToAddress(a.Target)
}

// OwnerAddress returns the agent owner's address.
func (a *Agent) OwnerAddress() common.Address {
	return common.HexToAddress(a.Owner)
}

// BuildCatalog parses the agent's ABI into a function catalog with the given
// authorization map applied.
func (a *Agent) BuildCatalog(authorized map[string]bool) (*catalog.Catalog, error) {
	return catalog.Parse(a.ABI, authorized)
}

// RegisterCommand carries the fields for registering or re-registering an
// agent. Registration is an upsert keyed on the registry identifier.
type RegisterCommand struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	Owner               string          `json:"owner"`
	Target              string          `json:"target"`
	ABI                 json.RawMessage `json:"abi"`
	AuthorizedFunctions []string        `json:"authorized_functions"`
}

// AuthorizationCommand toggles mediated execution for one catalog function.
type AuthorizationCommand struct {
	FunctionName string `json:"function_name"`
	Authorized   bool   `json:"authorized"`
}
