package actuator

import (
	"fmt"
	"sync"

	"github.com/kilianp07/mixbot/core/logger"
)

// LogDriver drives no hardware. It is used on development machines and in
// tests that need to observe transitions.
type LogDriver struct {
	mu     sync.Mutex
	log    logger.Logger
	states []bool
	count  int
}

// NewLogDriver returns a driver with n channels, DefaultChannels when n <= 0.
func NewLogDriver(n int, log logger.Logger) *LogDriver {
	if n <= 0 {
		n = DefaultChannels
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &LogDriver{log: log, states: make([]bool, n)}
}

func (d *LogDriver) SetChannelActive(channel int, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if channel < 0 || channel >= len(d.states) {
		return fmt.Errorf("log driver: channel %d out of range", channel)
	}
	d.states[channel] = active
	d.count++
	d.log.Debugw("channel output", map[string]any{"channel": channel, "active": active})
	return nil
}

func (d *LogDriver) Channels() int { return len(d.states) }

// Active returns the last state written to channel.
func (d *LogDriver) Active(channel int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return channel >= 0 && channel < len(d.states) && d.states[channel]
}

// Transitions returns the number of writes since creation.
func (d *LogDriver) Transitions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

func (d *LogDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.states {
		d.states[i] = false
	}
	d.log.Infof("log driver closed, %d channel(s) off", len(d.states))
	return nil
}
