package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/mixbot/core/metrics"
	"github.com/kilianp07/mixbot/infra/monitoring"
)

// EnvPrefix marks environment overrides: MIX_HTTP__ADDRESS sets http.address.
const EnvPrefix = "MIX_"

type Config struct {
	HTTP      HTTPConfig              `json:"http"`
	Inventory InventoryConfig         `json:"inventory"`
	Actuation ActuationConfig         `json:"actuation"`
	Mixing    MixingConfig            `json:"mixing"`
	Journal   JournalConfig           `json:"journal"`
	Metrics   metrics.Config          `json:"metrics"`
	Sentry    monitoring.SentryConfig `json:"sentry"`
	Catalog   CatalogConfig           `json:"catalog"`
}

// Load reads the file at path, applies environment overrides, fills defaults
// and validates every section. An empty path loads defaults and environment
// overrides only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.HTTP.SetDefaults()
	c.Inventory.SetDefaults()
	c.Actuation.SetDefaults()
	c.Mixing.SetDefaults()
	c.Journal.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	for name, v := range map[string]interface{ Validate() error }{
		"http":      c.HTTP,
		"inventory": c.Inventory,
		"actuation": c.Actuation,
		"mixing":    c.Mixing,
		"journal":   c.Journal,
	} {
		if err := v.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
