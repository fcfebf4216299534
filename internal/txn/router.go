package txn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/contractmind/backend/internal/chain"
	"github.com/contractmind/backend/internal/intent"
)

// Conservative gas defaults substituted when estimation fails.
const (
	hubGasDefault    = 500000
	directGasDefault = 300000
)

// Route labels on the envelope.
const (
	RouteHub    = "hub"
	RouteDirect = "direct"
)

var (
	hubRouteFeatures = []string{
		"Rate limiting protection",
		"On-chain analytics",
		"Protocol fee: 0.1%",
	}
	directRouteFeatures = []string{
		"Lower gas cost",
		"Standard Web3 transaction",
		"Full compatibility",
	}
)

var executeOnTargetSelector = crypto.Keccak256([]byte("executeOnTarget(bytes32,address,bytes)"))[:4]

// Preview is the structured transaction summary shown before signing.
type Preview struct {
	Action   string   `json:"action"`
	Protocol string   `json:"protocol"`
	Route    string   `json:"route"`
	Amount   string   `json:"amount,omitempty"`
	Features []string `json:"features"`
}

// Envelope is an unsigned, ready-to-sign transaction description. The caller
// signs and broadcasts it; the backend never holds keys.
type Envelope struct {
	To          string  `json:"to"`
	Data        string  `json:"data"`
	Value       string  `json:"value"`
	Gas         uint64  `json:"gas"`
	GasPrice    string  `json:"gas_price,omitempty"`
	Nonce       uint64  `json:"nonce"`
	ChainID     int64   `json:"chain_id"`
	Route       string  `json:"route"`
	Description string  `json:"description"`
	Preview     Preview `json:"preview"`
}

// RouteRequest carries the resolved call the router turns into an envelope.
type RouteRequest struct {
	AgentID      [32]byte
	AgentName    string
	Target       common.Address
	Caller       common.Address
	Calldata     []byte
	ContractType chain.ContractType
	FunctionName string
	Intent       intent.ParsedIntent
}

// Router builds unsigned transaction envelopes, choosing hub-mediated or
// direct execution from the detected contract type.
type Router struct {
	chain  *chain.Client
	logger *slog.Logger
}

// NewRouter creates a transaction router.
func NewRouter(chainClient *chain.Client, logger *slog.Logger) *Router {
	return &Router{
		chain:  chainClient,
		logger: logger.With("system", "router"),
	}
}

// Route builds the envelope for the request. Gas estimation and gas price
// fetching are best-effort: estimation failures fall back to route-specific
// defaults and a missing gas price is omitted so the wallet supplies one.
func (r *Router) Route(ctx context.Context, req RouteRequest) (*Envelope, error) {
	to := req.Target
	data := req.Calldata
	route := RouteDirect
	gasDefault := uint64(directGasDefault)

	if req.ContractType == chain.HubAware && r.chain.Hub() != (common.Address{}) {
		hubData, err := packExecuteOnTarget(req.AgentID, req.Target, req.Calldata)
		if err != nil {
			return nil, fmt.Errorf("pack hub call: %w", err)
		}
		to = r.chain.Hub()
		data = hubData
		route = RouteHub
		gasDefault = hubGasDefault
	}

	nonce, err := r.chain.Nonce(ctx, req.Caller)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce for %s: %w", req.Caller.Hex(), err)
	}

	gas := gasDefault
	estimated, err := r.chain.EstimateGas(ctx, ethereum.CallMsg{
		From: req.Caller,
		To:   &to,
		Data: data,
	})
	if err != nil {
		r.logger.Warn("gas estimation failed, using default",
			"route", route,
			"gas", gasDefault,
			"error", err)
	} else {
		gas = estimated
	}

	gasPrice := ""
	if price, err := r.chain.GasPrice(ctx); err != nil {
		r.logger.Warn("gas price unavailable, leaving unset", "error", err)
	} else {
		gasPrice = price.String()
	}

	return &Envelope{
		To:          to.Hex(),
		Data:        hexutil.Encode(data),
		Value:       "0x0",
		Gas:         gas,
		GasPrice:    gasPrice,
		Nonce:       nonce,
		ChainID:     r.chain.ChainID(),
		Route:       route,
		Description: describe(req),
		Preview:     preview(req, route),
	}, nil
}

func packExecuteOnTarget(agentID [32]byte, target common.Address, calldata []byte) ([]byte, error) {
	bytes32Type, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		return nil, err
	}
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, err
	}
	bytesType, err := abi.NewType("bytes", "", nil)
	if err != nil {
		return nil, err
	}

	args := abi.Arguments{{Type: bytes32Type}, {Type: addressType}, {Type: bytesType}}
	packed, err := args.Pack(agentID, target, calldata)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, executeOnTargetSelector...), packed...), nil
}

// describe renders the one-line transaction description from the intent
// action decision table.
func describe(req RouteRequest) string {
	in := req.Intent
	action := in.Action
	if action == "" {
		action = req.FunctionName
	}
	protocol := req.AgentName

	switch {
	case action == "stake" && in.Amount != "" && in.Token != "":
		return fmt.Sprintf("Stake %s %s on %s", in.Amount, in.Token, protocol)
	case action == "withdraw" && in.Amount != "" && in.Token != "":
		return fmt.Sprintf("Withdraw %s %s from %s", in.Amount, in.Token, protocol)
	case action == "swap":
		return fmt.Sprintf("Swap tokens on %s", protocol)
	case action == "claim" || action == "claimRewards":
		return fmt.Sprintf("Claim rewards from %s", protocol)
	case action != "":
		return fmt.Sprintf("%s on %s", capitalize(action), protocol)
	default:
		return fmt.Sprintf("Execute %s on contract", req.FunctionName)
	}
}

func preview(req RouteRequest, route string) Preview {
	action := req.Intent.Action
	if action == "" {
		action = req.FunctionName
	}

	p := Preview{
		Action:   capitalize(action),
		Protocol: req.AgentName,
	}

	if route == RouteHub {
		p.Route = "ContractMind Hub"
		p.Features = hubRouteFeatures
	} else {
		p.Route = "Direct (no intermediary)"
		p.Features = directRouteFeatures
	}

	if req.Intent.Amount != "" && req.Intent.Token != "" {
		p.Amount = fmt.Sprintf("%s %s", req.Intent.Amount, req.Intent.Token)
	}
	return p
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
