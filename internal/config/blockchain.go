package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// EnvBlockchainRPCURL overrides the chain RPC endpoint.
	EnvBlockchainRPCURL = "BLOCKCHAIN_RPC_URL"

	// EnvBlockchainChainID overrides the expected chain identifier.
	EnvBlockchainChainID = "BLOCKCHAIN_CHAIN_ID"

	// EnvBlockchainHubAddress overrides the trust-mediating hub contract address.
	EnvBlockchainHubAddress = "BLOCKCHAIN_HUB_ADDRESS"

	// EnvBlockchainRegistryAddress overrides the agent registry contract address.
	EnvBlockchainRegistryAddress = "BLOCKCHAIN_REGISTRY_ADDRESS"
)

// BlockchainConfig contains chain RPC and contract configuration.
type BlockchainConfig struct {
	RPCURL          string `toml:"rpc_url"`
	ChainID         int64  `toml:"chain_id"`
	HubAddress      string `toml:"hub_address"`
	RegistryAddress string `toml:"registry_address"`
	CallTimeout     string `toml:"call_timeout"`
	ReceiptTimeout  string `toml:"receipt_timeout"`
}

// Hub returns the hub contract address.
func (c *BlockchainConfig) Hub() common.Address {
	return common.HexToAddress(c.HubAddress)
}

// Registry returns the agent registry contract address.
func (c *BlockchainConfig) Registry() common.Address {
	return common.HexToAddress(c.RegistryAddress)
}

// CallTimeoutDuration parses and returns the per-call RPC timeout as a time.Duration.
func (c *BlockchainConfig) CallTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.CallTimeout)
	return d
}

// ReceiptTimeoutDuration parses and returns the receipt wait timeout as a time.Duration.
func (c *BlockchainConfig) ReceiptTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReceiptTimeout)
	return d
}

// Finalize applies defaults, loads environment overrides, and validates the blockchain configuration.
func (c *BlockchainConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *BlockchainConfig) Merge(overlay *BlockchainConfig) {
	if overlay.RPCURL != "" {
		c.RPCURL = overlay.RPCURL
	}
	if overlay.ChainID != 0 {
		c.ChainID = overlay.ChainID
	}
	if overlay.HubAddress != "" {
		c.HubAddress = overlay.HubAddress
	}
	if overlay.RegistryAddress != "" {
		c.RegistryAddress = overlay.RegistryAddress
	}
	if overlay.CallTimeout != "" {
		c.CallTimeout = overlay.CallTimeout
	}
	if overlay.ReceiptTimeout != "" {
		c.ReceiptTimeout = overlay.ReceiptTimeout
	}
}

func (c *BlockchainConfig) loadDefaults() {
	if c.ChainID == 0 {
		c.ChainID = 50312
	}
	if c.CallTimeout == "" {
		c.CallTimeout = "10s"
	}
	if c.ReceiptTimeout == "" {
		c.ReceiptTimeout = "30s"
	}
}

func (c *BlockchainConfig) loadEnv() {
	if v := os.Getenv(EnvBlockchainRPCURL); v != "" {
		c.RPCURL = v
	}
	if v := os.Getenv(EnvBlockchainChainID); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.ChainID = id
		}
	}
	if v := os.Getenv(EnvBlockchainHubAddress); v != "" {
		c.HubAddress = v
	}
	if v := os.Getenv(EnvBlockchainRegistryAddress); v != "" {
		c.RegistryAddress = v
	}
}

func (c *BlockchainConfig) validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc_url required")
	}
	if c.HubAddress != "" && !common.IsHexAddress(c.HubAddress) {
		return fmt.Errorf("invalid hub_address: %s", c.HubAddress)
	}
	if c.RegistryAddress != "" && !common.IsHexAddress(c.RegistryAddress) {
		return fmt.Errorf("invalid registry_address: %s", c.RegistryAddress)
	}
	if _, err := time.ParseDuration(c.CallTimeout); err != nil {
		return fmt.Errorf("invalid call_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.ReceiptTimeout); err != nil {
		return fmt.Errorf("invalid receipt_timeout: %w", err)
	}
	return nil
}
