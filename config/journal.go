package config

import (
	"fmt"

	"github.com/kilianp07/mixbot/core/mixing/journal"
)

// JournalConfig defines settings for mix journal storage and rotation.
type JournalConfig struct {
	// Backend selects the store type: "jsonl", "sqlite" or "none".
	Backend string `json:"backend"`
	// Path is the file location of the journal.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int  `json:"max_age_days"`
	Compress   bool `json:"compress"`
}

// SetDefaults applies sane defaults.
func (c *JournalConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "mixes.jsonl"
	}
}

// Validate checks mandatory fields.
func (c JournalConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite", "none":
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Backend != "none" && c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// Open creates the configured store.
func (c JournalConfig) Open() (journal.Store, error) {
	switch c.Backend {
	case "sqlite":
		return journal.NewSQLiteStore(c.Path)
	case "none":
		return journal.NopStore{}, nil
	default:
		return journal.NewJSONLStore(c.Path, journal.RotationOptions{
			MaxSizeMB:  c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAgeDays: c.MaxAgeDays,
			Compress:   c.Compress,
		})
	}
}
