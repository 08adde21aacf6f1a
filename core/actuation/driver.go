package actuation

import (
	"errors"
	"fmt"

	"github.com/kilianp07/mixbot/core/model"
)

// Driver is the hardware capability used by the Engine.
type Driver interface {
	// SetChannelActive switches the output of channel on or off.
	SetChannelActive(channel int, active bool) error
	// Channels returns the number of channels the driver controls.
	Channels() int
	// Close switches every output off and releases the hardware.
	Close() error
}

var (
	// ErrInvalidChannel is returned for channel indexes outside [0, Channels()).
	ErrInvalidChannel = model.ErrInvalidChannel
	// ErrChannelBusy is returned when a channel is asked to start while active.
	ErrChannelBusy = errors.New("channel already active")
	// ErrDeactivate is returned when a channel ran its full duration but
	// could not be switched off afterwards.
	ErrDeactivate = errors.New("channel did not switch off")
)

func checkChannel(d Driver, channel int) error {
	if channel < 0 || channel >= d.Channels() {
		return fmt.Errorf("channel %d of %d: %w", channel, d.Channels(), ErrInvalidChannel)
	}
	return nil
}
