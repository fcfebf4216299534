package chain

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ContractType classifies how a target contract expects to be called.
type ContractType string

const (
	// HubAware contracts trust the hub and are called through its
	// executeOnTarget indirection.
	HubAware ContractType = "hub-aware"

	// Regular contracts are called directly.
	Regular ContractType = "regular"
)

var trustedHubSelector = crypto.Keccak256([]byte("trustedHub()"))[:4]

// DetectContractType probes the target's trustedHub() getter. A contract is
// hub-aware only when the probe succeeds and returns a non-zero address.
// Reverts, missing functions, and malformed returns all classify the target
// as regular, so detection failures never block a transaction.
func (c *Client) DetectContractType(ctx context.Context, target common.Address) ContractType {
	ret, err := c.Call(ctx, ethereum.CallMsg{
		To:   &target,
		Data: trustedHubSelector,
	})
	if err != nil {
		c.logger.Debug("trustedHub probe failed, treating as regular",
			"target", target.Hex(),
			"error", err)
		return Regular
	}
	if len(ret) < 32 {
		return Regular
	}

	hub := common.BytesToAddress(ret[12:32])
	if hub == (common.Address{}) {
		return Regular
	}
	return HubAware
}
