package config

import (
	"fmt"
	"time"
)

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Address string `json:"address"`
	// OrderRate limits accepted orders per second; zero disables the limit.
	OrderRate  float64 `json:"order_rate"`
	OrderBurst int     `json:"order_burst"`
	// ShutdownTimeout bounds the graceful shutdown of the server.
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":5000"
	}
	if c.OrderBurst <= 0 {
		c.OrderBurst = 1
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Validate checks mandatory fields.
func (c HTTPConfig) Validate() error {
	if c.OrderRate < 0 {
		return fmt.Errorf("order_rate must not be negative")
	}
	return nil
}
