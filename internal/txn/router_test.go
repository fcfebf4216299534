package txn_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/contractmind/backend/internal/chain"
	"github.com/contractmind/backend/internal/config"
	"github.com/contractmind/backend/internal/intent"
	"github.com/contractmind/backend/internal/txn"
)

var (
	hubAddr    = common.HexToAddress("0x7777777777777777777777777777777777777777")
	targetAddr = common.HexToAddress("0x3333333333333333333333333333333333333333")
	callerAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type scriptedRPC struct {
	nonce       uint64
	nonceErr    error
	gasEstimate uint64
	estimateErr error
	gasPrice    *big.Int
	priceErr    error
	callResult  []byte
	callErr     error
	callFunc    func(msg ethereum.CallMsg) ([]byte, error)
}

func (s *scriptedRPC) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if s.callFunc != nil {
		return s.callFunc(msg)
	}
	return s.callResult, s.callErr
}

func (s *scriptedRPC) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return s.gasEstimate, s.estimateErr
}

func (s *scriptedRPC) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return s.nonce, s.nonceErr
}

func (s *scriptedRPC) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return s.gasPrice, s.priceErr
}

func (s *scriptedRPC) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouter(rpc chain.RPC) *txn.Router {
	cfg := &config.BlockchainConfig{
		RPCURL:      "http://localhost:8545",
		ChainID:     50312,
		HubAddress:  hubAddr.Hex(),
		CallTimeout: "5s",
	}
	return txn.NewRouter(chain.NewClient(rpc, cfg, discard()), discard())
}

func stakeCalldata(t *testing.T) []byte {
	t.Helper()
	c := encoderCatalog(t)
	stake, _ := c.Lookup("stake")
	data, err := txn.Encode(stake, map[string]any{"amount": big.NewInt(100)})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func stakeRequest(t *testing.T, contractType chain.ContractType) txn.RouteRequest {
	var agentID [32]byte
	agentID[31] = 0x01

	return txn.RouteRequest{
		AgentID:      agentID,
		AgentName:    "DeFi Staking",
		Target:       targetAddr,
		Caller:       callerAddr,
		Calldata:     stakeCalldata(t),
		ContractType: contractType,
		FunctionName: "stake",
		Intent: intent.ParsedIntent{
			Action: "stake",
			Amount: "100",
			Token:  "USDC",
		},
	}
}

func TestRouteHub(t *testing.T) {
	rpc := &scriptedRPC{nonce: 7, gasEstimate: 120000, gasPrice: big.NewInt(2000000000)}
	router := newRouter(rpc)

	env, err := router.Route(context.Background(), stakeRequest(t, chain.HubAware))
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	if env.To != hubAddr.Hex() {
		t.Errorf("to = %s, want hub", env.To)
	}
	if env.Route != txn.RouteHub {
		t.Errorf("route = %s", env.Route)
	}
	if env.Nonce != 7 {
		t.Errorf("nonce = %d", env.Nonce)
	}
	if env.Gas != 120000 {
		t.Errorf("gas = %d", env.Gas)
	}
	if env.GasPrice != "2000000000" {
		t.Errorf("gas price = %q", env.GasPrice)
	}
	if env.Value != "0x0" {
		t.Errorf("value = %q", env.Value)
	}
	if env.ChainID != 50312 {
		t.Errorf("chain id = %d", env.ChainID)
	}

	wantSelector := crypto.Keccak256([]byte("executeOnTarget(bytes32,address,bytes)"))[:4]
	if !strings.HasPrefix(env.Data, "0x"+common.Bytes2Hex(wantSelector)) {
		t.Errorf("data prefix = %s", env.Data[:10])
	}

	if env.Description != "Stake 100 USDC on DeFi Staking" {
		t.Errorf("description = %q", env.Description)
	}
	if env.Preview.Route != "ContractMind Hub" {
		t.Errorf("preview route = %q", env.Preview.Route)
	}
	if len(env.Preview.Features) != 3 || env.Preview.Features[0] != "Rate limiting protection" {
		t.Errorf("preview features = %v", env.Preview.Features)
	}
	if env.Preview.Amount != "100 USDC" {
		t.Errorf("preview amount = %q", env.Preview.Amount)
	}
}

func TestRouteDirect(t *testing.T) {
	rpc := &scriptedRPC{nonce: 3, gasEstimate: 60000, gasPrice: big.NewInt(1)}
	router := newRouter(rpc)

	calldata := stakeCalldata(t)
	env, err := router.Route(context.Background(), stakeRequest(t, chain.Regular))
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	if env.To != targetAddr.Hex() {
		t.Errorf("to = %s, want target", env.To)
	}
	if env.Route != txn.RouteDirect {
		t.Errorf("route = %s", env.Route)
	}
	if env.Data != "0x"+common.Bytes2Hex(calldata) {
		t.Error("direct route should carry raw calldata")
	}
	if env.Preview.Features[0] != "Lower gas cost" {
		t.Errorf("preview features = %v", env.Preview.Features)
	}
}

func TestRouteGasEstimateFallback(t *testing.T) {
	cases := []struct {
		name         string
		contractType chain.ContractType
		want         uint64
	}{
		{"hub default", chain.HubAware, 500000},
		{"direct default", chain.Regular, 300000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rpc := &scriptedRPC{estimateErr: errors.New("execution reverted"), gasPrice: big.NewInt(1)}
			router := newRouter(rpc)

			env, err := router.Route(context.Background(), stakeRequest(t, tc.contractType))
			if err != nil {
				t.Fatalf("route: %v", err)
			}
			if env.Gas != tc.want {
				t.Errorf("gas = %d, want %d", env.Gas, tc.want)
			}
		})
	}
}

func TestRouteGasPriceOmittedOnFailure(t *testing.T) {
	rpc := &scriptedRPC{gasEstimate: 50000, priceErr: errors.New("rpc down")}
	router := newRouter(rpc)

	env, err := router.Route(context.Background(), stakeRequest(t, chain.Regular))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if env.GasPrice != "" {
		t.Errorf("gas price = %q, want empty", env.GasPrice)
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "gas_price") {
		t.Error("empty gas price should be omitted from JSON")
	}
}

func TestRouteNonceFailure(t *testing.T) {
	rpc := &scriptedRPC{nonceErr: errors.New("rpc down")}
	router := newRouter(rpc)

	if _, err := router.Route(context.Background(), stakeRequest(t, chain.Regular)); err == nil {
		t.Error("expected error when nonce fetch fails")
	}
}

func TestRouteClaimDescription(t *testing.T) {
	rpc := &scriptedRPC{gasEstimate: 40000, gasPrice: big.NewInt(1)}
	router := newRouter(rpc)

	req := stakeRequest(t, chain.Regular)
	req.FunctionName = "claimRewards"
	req.Intent = intent.ParsedIntent{Action: "claim"}

	env, err := router.Route(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if env.Description != "Claim rewards from DeFi Staking" {
		t.Errorf("description = %q", env.Description)
	}
}
