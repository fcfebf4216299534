package config

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// EnvStreamsEnabled toggles telemetry publishing.
	EnvStreamsEnabled = "STREAMS_ENABLED"

	// EnvStreamsContractAddress overrides the streams contract address.
	EnvStreamsContractAddress = "STREAMS_CONTRACT_ADDRESS"
)

// StreamsConfig contains on-chain telemetry sink configuration. Publishing
// is fire-and-forget and disabled unless both flag and address are set.
type StreamsConfig struct {
	Enabled         bool   `toml:"enabled"`
	ContractAddress string `toml:"contract_address"`
}

// Contract returns the streams contract address.
func (c *StreamsConfig) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// Finalize applies defaults, loads environment overrides, and validates the streams configuration.
func (c *StreamsConfig) Finalize() error {
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *StreamsConfig) Merge(overlay *StreamsConfig) {
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.ContractAddress != "" {
		c.ContractAddress = overlay.ContractAddress
	}
}

func (c *StreamsConfig) loadEnv() {
	if v := os.Getenv(EnvStreamsEnabled); v != "" {
		c.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvStreamsContractAddress); v != "" {
		c.ContractAddress = v
	}
}

func (c *StreamsConfig) validate() error {
	if c.Enabled && !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("streams enabled but contract_address invalid: %q", c.ContractAddress)
	}
	return nil
}
