package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/contractmind/backend/internal/catalog"
	"github.com/contractmind/backend/internal/chain"
)

var getAgentSelector = crypto.Keccak256([]byte("getAgent(bytes32)"))[:4]

// Directory resolves agent references to agent records. Lookups read through
// the cache to Postgres; identifiers unknown to the database fall back to
// the on-chain registry, so agents registered outside this backend still
// resolve (without an ABI).
type Directory struct {
	sys    System
	cache  Cache
	chain  *chain.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewDirectory creates an agent directory. cache may be nil.
func NewDirectory(sys System, cache Cache, chainClient *chain.Client, ttl time.Duration, logger *slog.Logger) *Directory {
	return &Directory{
		sys:    sys,
		cache:  cache,
		chain:  chainClient,
		ttl:    ttl,
		logger: logger.With("system", "directory"),
	}
}

func cacheKey(ref string) string {
	return "agent:" + strings.ToLower(ref)
}

// Resolve returns the agent identified by ref, which is either a registry ID
// or an agent name. Cache failures are logged and treated as misses.
func (d *Directory) Resolve(ctx context.Context, ref string) (*Agent, error) {
	if d.cache != nil {
		if data, ok, err := d.cache.Get(ctx, cacheKey(ref)); err != nil {
			d.logger.Warn("cache read failed", "ref", ref, "error", err)
		} else if ok {
			var a Agent
			if err := json.Unmarshal(data, &a); err == nil {
				return &a, nil
			}
			d.logger.Warn("cache entry corrupt, discarding", "ref", ref)
		}
	}

	a, err := d.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}

	d.store(ctx, ref, a)
	return a, nil
}

func (d *Directory) lookup(ctx context.Context, ref string) (*Agent, error) {
	id, idErr := ParseID(ref)
	if idErr != nil {
		return d.sys.GetByName(ctx, ref)
	}

	a, err := d.sys.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return d.fetchFromRegistry(ctx, id)
	}
	return a, err
}

func (d *Directory) store(ctx context.Context, ref string, a *Agent) {
	if d.cache == nil {
		return
	}

	data, err := json.Marshal(a)
	if err != nil {
		return
	}

	for _, key := range []string{cacheKey(ref), cacheKey(a.ID.String()), cacheKey(a.Name)} {
		if err := d.cache.Set(ctx, key, data, d.ttl); err != nil {
			d.logger.Warn("cache write failed", "key", key, "error", err)
			return
		}
	}
}

// Invalidate drops the agent's cache entries after registration or
// authorization changes.
func (d *Directory) Invalidate(ctx context.Context, a *Agent) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Delete(ctx, cacheKey(a.ID.String()), cacheKey(a.Name)); err != nil {
		d.logger.Warn("cache invalidation failed", "agent", a.ID, "error", err)
	}
}

// Catalog assembles the agent's function catalog with its stored
// authorizations applied.
func (d *Directory) Catalog(ctx context.Context, a *Agent) (*catalog.Catalog, error) {
	authorized, err := d.sys.Authorizations(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return a.BuildCatalog(authorized)
}

// registryAgentArgs mirrors the registry's Agent struct:
// (owner, targetContract, name, configIPFS, active, createdAt, updatedAt).
func registryAgentArgs() (abi.Arguments, error) {
	types := []string{"address", "address", "string", "string", "bool", "uint256", "uint256"}
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		parsed, err := abi.NewType(t, "", nil)
		if err != nil {
			return nil, err
		}
		args[i] = abi.Argument{Type: parsed}
	}
	return args, nil
}

func (d *Directory) fetchFromRegistry(ctx context.Context, id ID) (*Agent, error) {
	registry := d.chain.Registry()
	if registry == (common.Address{}) {
		return nil, ErrNotFound
	}

	data := make([]byte, 0, 36)
	data = append(data, getAgentSelector...)
	idBytes := id.Bytes32()
	data = append(data, idBytes[:]...)

	ret, err := d.chain.Call(ctx, ethereum.CallMsg{To: &registry, Data: data})
	if err != nil {
		d.logger.Debug("registry lookup failed", "id", id, "error", err)
		return nil, ErrNotFound
	}

	args, err := registryAgentArgs()
	if err != nil {
		return nil, fmt.Errorf("registry abi: %w", err)
	}
	values, err := args.Unpack(ret)
	if err != nil || len(values) < 7 {
		d.logger.Debug("registry response malformed", "id", id, "error", err)
		return nil, ErrNotFound
	}

	owner := values[0].(common.Address)
	target := values[1].(common.Address)
	name := values[2].(string)
	active := values[4].(bool)
	createdAt := values[5].(*big.Int)
	updatedAt := values[6].(*big.Int)

	if owner == (common.Address{}) || !active {
		return nil, ErrNotFound
	}

	d.logger.Info("agent resolved from registry", "id", id, "name", name)
	return &Agent{
		ID:        id,
		Name:      name,
		Owner:     owner.Hex(),
		Target:    target.Hex(),
		Active:    active,
		CreatedAt: time.Unix(createdAt.Int64(), 0).UTC(),
		UpdatedAt: time.Unix(updatedAt.Int64(), 0).UTC(),
	}, nil
}
