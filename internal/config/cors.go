package config

import (
	"os"
	"strings"
)

const (
	// EnvCORSOrigins overrides the allowed CORS origins (comma-separated).
	EnvCORSOrigins = "CORS_ORIGINS"
)

// CORSConfig contains cross-origin resource sharing configuration.
type CORSConfig struct {
	Origins     []string `toml:"origins"`
	Methods     []string `toml:"methods"`
	Headers     []string `toml:"headers"`
	Credentials bool     `toml:"credentials"`
}

// Finalize applies defaults and loads environment overrides.
func (c *CORSConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return nil
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *CORSConfig) Merge(overlay *CORSConfig) {
	if len(overlay.Origins) > 0 {
		c.Origins = overlay.Origins
	}
	if len(overlay.Methods) > 0 {
		c.Methods = overlay.Methods
	}
	if len(overlay.Headers) > 0 {
		c.Headers = overlay.Headers
	}
	if overlay.Credentials {
		c.Credentials = true
	}
}

func (c *CORSConfig) loadDefaults() {
	if len(c.Methods) == 0 {
		c.Methods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(c.Headers) == 0 {
		c.Headers = []string{"Content-Type", "Authorization"}
	}
}

func (c *CORSConfig) loadEnv() {
	if v := os.Getenv(EnvCORSOrigins); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		c.Origins = origins
	}
}
