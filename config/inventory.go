package config

import (
	"fmt"

	"github.com/kilianp07/mixbot/core/inventory"
)

// InventoryConfig selects where fill levels are stored.
type InventoryConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	// Path is the SQLite database file.
	Path string `json:"path"`
	// MaxCapacityML caps additive refills; zero disables the cap.
	MaxCapacityML float64 `json:"max_capacity_ml"`
	// RefillAllDefaultML is used by refill_all when no level is given.
	RefillAllDefaultML float64 `json:"refill_all_default_ml"`
}

// SetDefaults applies sane defaults.
func (c *InventoryConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Path == "" {
		c.Path = "mixbot.db"
	}
	if c.RefillAllDefaultML <= 0 {
		c.RefillAllDefaultML = 2000
	}
}

// Validate checks mandatory fields.
func (c InventoryConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.MaxCapacityML < 0 {
		return fmt.Errorf("max_capacity_ml must not be negative")
	}
	return nil
}

// Options returns the store level policies.
func (c InventoryConfig) Options() inventory.Options {
	return inventory.Options{MaxCapacityML: c.MaxCapacityML}
}
