package main

import (
	"errors"
	"time"
)

// Config holds parameters for the relay board simulator.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Channels    int
	// FlowMLPerSecond converts open time into poured volume.
	FlowMLPerSecond float64
	// FailChannels never switch on; their commands are answered with OFF.
	FailChannels []int
	ReportEvery  time.Duration
	Verbose      bool
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return errors.New("broker is required")
	}
	if c.Channels <= 0 {
		return errors.New("channels must be positive")
	}
	if c.FlowMLPerSecond <= 0 {
		return errors.New("flow must be positive")
	}
	return nil
}
