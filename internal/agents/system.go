package agents

import (
	"context"
)

// System defines the interface for agent storage and authorization operations.
type System interface {
	Register(ctx context.Context, cmd RegisterCommand) (*Agent, error)
	GetByID(ctx context.Context, id ID) (*Agent, error)
	GetByName(ctx context.Context, name string) (*Agent, error)
	List(ctx context.Context, activeOnly bool) ([]Agent, error)
	Authorizations(ctx context.Context, id ID) (map[string]bool, error)
	SetAuthorization(ctx context.Context, id ID, cmd AuthorizationCommand) error
	Deactivate(ctx context.Context, id ID) error
	Delete(ctx context.Context, id ID) error
}
