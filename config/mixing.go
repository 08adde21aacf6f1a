package config

import (
	"fmt"

	"github.com/kilianp07/mixbot/core/mixing"
)

// MixingConfig controls the job queue and the presentation of cocktails.
type MixingConfig struct {
	MaxConcurrentJobs int     `json:"max_concurrent_jobs"`
	QueueSize         int     `json:"queue_size"`
	HistorySize       int     `json:"history_size"`
	GlassSizeML       float64 `json:"glass_size_ml"`
	ImageDir          string  `json:"image_dir"`
}

// SetDefaults applies sane defaults.
func (c *MixingConfig) SetDefaults() {
	cc := c.Coordinator()
	cc.SetDefaults()
	c.MaxConcurrentJobs, c.QueueSize, c.HistorySize = cc.MaxConcurrentJobs, cc.QueueSize, cc.HistorySize
	if c.GlassSizeML <= 0 {
		c.GlassSizeML = 350
	}
	if c.ImageDir == "" {
		c.ImageDir = "../images"
	}
}

// Validate checks mandatory fields.
func (c MixingConfig) Validate() error {
	if c.MaxConcurrentJobs > 19 {
		return fmt.Errorf("max_concurrent_jobs above channel count")
	}
	return nil
}

// Coordinator returns the job queue settings.
func (c MixingConfig) Coordinator() mixing.Config {
	return mixing.Config{
		MaxConcurrentJobs: c.MaxConcurrentJobs,
		QueueSize:         c.QueueSize,
		HistorySize:       c.HistorySize,
	}
}
