package txn

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/contractmind/backend/internal/catalog"
	"github.com/contractmind/backend/internal/chain"
)

// QueryExecutor issues read-only contract calls for view/pure functions and
// formats the decoded result for chat display. Failures are rendered as
// user-facing messages rather than errors, because the chat surface is the
// only consumer.
type QueryExecutor struct {
	chain  *chain.Client
	logger *slog.Logger
}

// NewQueryExecutor creates a read-query executor.
func NewQueryExecutor(chainClient *chain.Client, logger *slog.Logger) *QueryExecutor {
	return &QueryExecutor{
		chain:  chainClient,
		logger: logger.With("system", "query"),
	}
}

// QueryRequest identifies the view call to execute.
type QueryRequest struct {
	Target       common.Address
	Catalog      *catalog.Catalog
	FunctionName string
	UserAddress  string
	Params       map[string]any
}

// Execute runs the query and returns the chat-ready result text.
func (q *QueryExecutor) Execute(ctx context.Context, req QueryRequest) string {
	fn, ok := req.Catalog.Lookup(req.FunctionName)
	if !ok {
		return fmt.Sprintf("Function %s not found in contract ABI", req.FunctionName)
	}

	switch req.FunctionName {
	case "balanceOf":
		return q.formatScaled(ctx, req, fn, "Your balance is")
	case "totalSupply":
		return q.formatScaled(ctx, req, fn, "Total supply is")
	case "decimals":
		values, err := q.call(ctx, req.Target, fn, nil)
		if err != nil {
			return q.errorMessage(req, err)
		}
		return fmt.Sprintf("This token uses %v decimals", values[0])
	case "name":
		values, err := q.call(ctx, req.Target, fn, nil)
		if err != nil {
			return q.errorMessage(req, err)
		}
		return fmt.Sprintf("Token name: %v", values[0])
	case "symbol":
		values, err := q.call(ctx, req.Target, fn, nil)
		if err != nil {
			return q.errorMessage(req, err)
		}
		return fmt.Sprintf("Token symbol: %v", values[0])
	case "owner":
		values, err := q.call(ctx, req.Target, fn, nil)
		if err != nil {
			return q.errorMessage(req, err)
		}
		if addr, ok := values[0].(common.Address); ok {
			return fmt.Sprintf("Contract owner: %s", addr.Hex())
		}
		return fmt.Sprintf("Contract owner: %v", values[0])
	case "allowance":
		return "To check allowance, please specify: 'Check allowance for [spender address]'"
	default:
		return q.generic(ctx, req, fn)
	}
}

// call encodes and executes the view call, decoding the outputs.
func (q *QueryExecutor) call(ctx context.Context, target common.Address, fn *catalog.Function, params map[string]any) ([]any, error) {
	data, err := Encode(fn, params)
	if err != nil {
		return nil, err
	}

	ret, err := q.chain.Call(ctx, ethereum.CallMsg{To: &target, Data: data})
	if err != nil {
		return nil, err
	}

	outputs, err := fn.OutputArgs()
	if err != nil {
		return nil, err
	}
	values, err := outputs.Unpack(ret)
	if err != nil {
		return nil, fmt.Errorf("decode %s result: %w", fn.Name, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", fn.Name)
	}
	return values, nil
}

func (q *QueryExecutor) formatScaled(ctx context.Context, req QueryRequest, fn *catalog.Function, label string) string {
	params := req.Params
	if len(fn.Inputs) == 1 && fn.Inputs[0].Type == "address" {
		params = map[string]any{fn.Inputs[0].Name: req.UserAddress}
	}

	values, err := q.call(ctx, req.Target, fn, params)
	if err != nil {
		return q.errorMessage(req, err)
	}

	raw, ok := values[0].(*big.Int)
	if !ok {
		return fmt.Sprintf("%s %v", label, values[0])
	}

	decimals, err := q.tokenDecimals(ctx, req)
	if err != nil {
		return fmt.Sprintf("%s %s (raw amount)", label, raw)
	}

	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	formatted := new(big.Float).Quo(new(big.Float).SetInt(raw), scale)
	return fmt.Sprintf("%s %s tokens (raw: %s)", label, formatted.Text('f', 4), raw)
}

func (q *QueryExecutor) tokenDecimals(ctx context.Context, req QueryRequest) (uint8, error) {
	fn, ok := req.Catalog.Lookup("decimals")
	if !ok {
		return 0, fmt.Errorf("no decimals function")
	}

	values, err := q.call(ctx, req.Target, fn, nil)
	if err != nil {
		return 0, err
	}

	switch v := values[0].(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unexpected decimals type %T", values[0])
	}
}

func (q *QueryExecutor) generic(ctx context.Context, req QueryRequest, fn *catalog.Function) string {
	params := req.Params
	if len(fn.Inputs) == 1 && fn.Inputs[0].Type == "address" && params[fn.Inputs[0].Name] == nil {
		params = map[string]any{fn.Inputs[0].Name: req.UserAddress}
	}

	values, err := q.call(ctx, req.Target, fn, params)
	if err != nil {
		return q.errorMessage(req, err)
	}

	if len(values) == 1 {
		return fmt.Sprintf("%s returned: %v", req.FunctionName, values[0])
	}
	return fmt.Sprintf("%s returned: %v", req.FunctionName, values)
}

func (q *QueryExecutor) errorMessage(req QueryRequest, err error) string {
	q.logger.Warn("read query failed",
		"function", req.FunctionName,
		"target", req.Target.Hex(),
		"error", err)
	return fmt.Sprintf(
		"Error querying %s: %v. Verify the contract at %s is deployed and accessible on the current network (Chain ID: %d).",
		req.FunctionName, err, req.Target.Hex(), q.chain.ChainID())
}
