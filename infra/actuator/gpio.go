package actuator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/kilianp07/mixbot/core/logger"
)

// GPIOConfig selects the lines of a sysfs GPIO relay board.
type GPIOConfig struct {
	// Pins lists the line number of each channel. Defaults to DefaultPins.
	Pins []int `json:"pins"`
	// ActiveLow inverts the output: relay boards switch on a low level.
	ActiveLow bool `json:"active_low"`
	// Root is the sysfs GPIO directory, /sys/class/gpio by default.
	Root string `json:"root"`
}

// GPIODriver writes channel states to /sys/class/gpio/gpioN/value.
type GPIODriver struct {
	mu   sync.Mutex
	cfg  GPIOConfig
	log  logger.Logger
	vals []string
}

// NewGPIODriver exports every line, configures it as output and drives it
// inactive.
func NewGPIODriver(cfg GPIOConfig, log logger.Logger) (*GPIODriver, error) {
	if len(cfg.Pins) == 0 {
		cfg.Pins = DefaultPins
	}
	if cfg.Root == "" {
		cfg.Root = "/sys/class/gpio"
	}
	if log == nil {
		log = logger.Nop{}
	}
	seen := make(map[int]bool, len(cfg.Pins))
	for _, p := range cfg.Pins {
		if p < 0 || seen[p] {
			return nil, fmt.Errorf("gpio: invalid or duplicate pin %d", p)
		}
		seen[p] = true
	}
	d := &GPIODriver{cfg: cfg, log: log}
	d.vals = make([]string, len(cfg.Pins))
	for ch, pin := range cfg.Pins {
		line := d.line(pin)
		d.vals[ch] = filepath.Join(line, "value")
		if _, err := os.Stat(line); errors.Is(err, os.ErrNotExist) {
			if err := d.write(filepath.Join(cfg.Root, "export"), strconv.Itoa(pin)); err != nil {
				return nil, fmt.Errorf("gpio: export pin %d: %w", pin, err)
			}
		}
		if err := d.write(filepath.Join(line, "direction"), "out"); err != nil {
			return nil, fmt.Errorf("gpio: direction pin %d: %w", pin, err)
		}
		if err := d.SetChannelActive(ch, false); err != nil {
			return nil, err
		}
	}
	log.Infof("gpio driver ready on %d line(s), active_low=%t", len(cfg.Pins), cfg.ActiveLow)
	return d, nil
}

func (d *GPIODriver) line(pin int) string {
	return filepath.Join(d.cfg.Root, "gpio"+strconv.Itoa(pin))
}

func (d *GPIODriver) write(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}

// level returns the value written for a logical state.
func (d *GPIODriver) level(active bool) string {
	if active != d.cfg.ActiveLow {
		return "1"
	}
	return "0"
}

func (d *GPIODriver) SetChannelActive(channel int, active bool) error {
	if channel < 0 || channel >= len(d.vals) {
		return fmt.Errorf("gpio: channel %d out of range", channel)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(d.vals[channel], d.level(active)); err != nil {
		return fmt.Errorf("gpio: pin %d: %w", d.cfg.Pins[channel], err)
	}
	return nil
}

func (d *GPIODriver) Channels() int { return len(d.vals) }

// Close drives every line inactive and unexports it.
func (d *GPIODriver) Close() error {
	var errs []error
	for ch, pin := range d.cfg.Pins {
		if err := d.SetChannelActive(ch, false); err != nil {
			errs = append(errs, err)
		}
		if err := d.write(filepath.Join(d.cfg.Root, "unexport"), strconv.Itoa(pin)); err != nil {
			d.log.Debugf("unexport pin %d: %v", pin, err)
		}
	}
	return errors.Join(errs...)
}
