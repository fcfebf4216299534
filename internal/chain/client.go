package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/contractmind/backend/internal/config"
)

// Client is a timeout-bounded view of the chain node. Every call applies
// the configured per-call timeout so a stalled node cannot hang a request.
type Client struct {
	rpc         RPC
	chainID     int64
	hub         common.Address
	registry    common.Address
	callTimeout time.Duration
	logger      *slog.Logger
}

// Dial connects to the configured RPC endpoint.
func Dial(cfg *config.BlockchainConfig, logger *slog.Logger) (*Client, error) {
	ec, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", cfg.RPCURL, err)
	}
	return NewClient(ec, cfg, logger), nil
}

// NewClient wraps an existing RPC connection.
func NewClient(rpc RPC, cfg *config.BlockchainConfig, logger *slog.Logger) *Client {
	return &Client{
		rpc:         rpc,
		chainID:     cfg.ChainID,
		hub:         cfg.Hub(),
		registry:    cfg.Registry(),
		callTimeout: cfg.CallTimeoutDuration(),
		logger:      logger,
	}
}

// ChainID returns the configured chain identifier.
func (c *Client) ChainID() int64 {
	return c.chainID
}

// Hub returns the trust-mediating hub contract address. The zero address
// means no hub is deployed.
func (c *Client) Hub() common.Address {
	return c.hub
}

// Registry returns the agent registry contract address.
func (c *Client) Registry() common.Address {
	return c.registry
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

// Call executes a read-only contract call against the latest block.
func (c *Client) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rpc.CallContract(ctx, msg, nil)
}

// EstimateGas estimates the gas required to execute the message.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rpc.EstimateGas(ctx, msg)
}

// Nonce returns the pending-state nonce for the account.
func (c *Client) Nonce(ctx context.Context, account common.Address) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rpc.PendingNonceAt(ctx, account)
}

// GasPrice returns the node's suggested gas price.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rpc.SuggestGasPrice(ctx)
}

// Receipt fetches the receipt for a mined transaction. go-ethereum returns
// ethereum.NotFound while the transaction is still pending.
func (c *Client) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rpc.TransactionReceipt(ctx, txHash)
}
