package agents_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/contractmind/backend/internal/agents"
	"github.com/contractmind/backend/internal/chain"
	"github.com/contractmind/backend/internal/config"
)

type stubSystem struct {
	agents.System
	byID   map[agents.ID]*agents.Agent
	byName map[string]*agents.Agent
	calls  int
}

func (s *stubSystem) GetByID(ctx context.Context, id agents.ID) (*agents.Agent, error) {
	s.calls++
	if a, ok := s.byID[id]; ok {
		return a, nil
	}
	return nil, agents.ErrNotFound
}

func (s *stubSystem) GetByName(ctx context.Context, name string) (*agents.Agent, error) {
	s.calls++
	if a, ok := s.byName[name]; ok {
		return a, nil
	}
	return nil, agents.ErrNotFound
}

func (s *stubSystem) Authorizations(ctx context.Context, id agents.ID) (map[string]bool, error) {
	return map[string]bool{"stake": true}, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	return data, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

type registryRPC struct {
	response []byte
	err      error
}

func (s *registryRPC) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return s.response, s.err
}

func (s *registryRPC) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 0, nil
}

func (s *registryRPC) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func (s *registryRPC) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (s *registryRPC) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDirectory(sys *stubSystem, cache agents.Cache, rpc chain.RPC) *agents.Directory {
	cfg := &config.BlockchainConfig{
		RPCURL:          "http://localhost:8545",
		RegistryAddress: "0x4444444444444444444444444444444444444444",
		CallTimeout:     "5s",
	}
	client := chain.NewClient(rpc, cfg, testLogger())
	return agents.NewDirectory(sys, cache, client, time.Minute, testLogger())
}

func testAgent(t *testing.T) *agents.Agent {
	t.Helper()
	id, err := agents.ParseID(testID)
	if err != nil {
		t.Fatal(err)
	}
	return &agents.Agent{
		ID:     id,
		Name:   "staking",
		Owner:  "0x2222222222222222222222222222222222222222",
		Target: "0x3333333333333333333333333333333333333333",
		ABI:    json.RawMessage(`[{"type":"function","name":"stake","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}]`),
		Active: true,
	}
}

func TestResolveByNameCachesResult(t *testing.T) {
	agent := testAgent(t)
	sys := &stubSystem{byName: map[string]*agents.Agent{"staking": agent}}
	cache := newMemoryCache()
	dir := newDirectory(sys, cache, &registryRPC{err: ethereum.NotFound})

	first, err := dir.Resolve(context.Background(), "staking")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first.Name != "staking" {
		t.Errorf("name = %q", first.Name)
	}

	second, err := dir.Resolve(context.Background(), "staking")
	if err != nil {
		t.Fatalf("resolve cached: %v", err)
	}
	if second.Target != agent.Target {
		t.Errorf("cached target = %q", second.Target)
	}
	if sys.calls != 1 {
		t.Errorf("database lookups = %d, want 1", sys.calls)
	}
}

func TestResolveByIDHitsCacheUnderBothKeys(t *testing.T) {
	agent := testAgent(t)
	sys := &stubSystem{byID: map[agents.ID]*agents.Agent{agent.ID: agent}}
	cache := newMemoryCache()
	dir := newDirectory(sys, cache, &registryRPC{err: ethereum.NotFound})

	if _, err := dir.Resolve(context.Background(), testID); err != nil {
		t.Fatalf("resolve by id: %v", err)
	}

	if _, err := dir.Resolve(context.Background(), "staking"); err != nil {
		t.Fatalf("resolve by name after id: %v", err)
	}
	if sys.calls != 1 {
		t.Errorf("database lookups = %d, want 1", sys.calls)
	}
}

func TestResolveRegistryFallback(t *testing.T) {
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")
	target := common.HexToAddress("0x3333333333333333333333333333333333333333")

	addressType, _ := abi.NewType("address", "", nil)
	stringType, _ := abi.NewType("string", "", nil)
	boolType, _ := abi.NewType("bool", "", nil)
	uintType, _ := abi.NewType("uint256", "", nil)
	args := abi.Arguments{
		{Type: addressType}, {Type: addressType},
		{Type: stringType}, {Type: stringType},
		{Type: boolType}, {Type: uintType}, {Type: uintType},
	}

	now := big.NewInt(time.Now().Unix())
	packed, err := args.Pack(owner, target, "on-chain-agent", "ipfs://config", true, now, now)
	if err != nil {
		t.Fatalf("pack registry response: %v", err)
	}

	sys := &stubSystem{}
	dir := newDirectory(sys, nil, &registryRPC{response: packed})

	agent, err := dir.Resolve(context.Background(), testID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if agent.Name != "on-chain-agent" {
		t.Errorf("name = %q", agent.Name)
	}
	if agent.Target != target.Hex() {
		t.Errorf("target = %q", agent.Target)
	}
	if len(agent.ABI) != 0 {
		t.Error("registry agent should have no abi")
	}
}

func TestResolveUnknown(t *testing.T) {
	sys := &stubSystem{}
	dir := newDirectory(sys, nil, &registryRPC{err: ethereum.NotFound})

	if _, err := dir.Resolve(context.Background(), "missing"); err != agents.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCatalogAppliesAuthorizations(t *testing.T) {
	agent := testAgent(t)
	sys := &stubSystem{byName: map[string]*agents.Agent{"staking": agent}}
	dir := newDirectory(sys, nil, &registryRPC{err: ethereum.NotFound})

	cat, err := dir.Catalog(context.Background(), agent)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	stake, ok := cat.Lookup("stake")
	if !ok {
		t.Fatal("stake missing from catalog")
	}
	if !stake.Authorized {
		t.Error("stake should be authorized")
	}
}
