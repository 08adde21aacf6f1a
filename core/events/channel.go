package events

import "time"

// ChannelAction names a channel transition.
type ChannelAction string

const (
	ChannelActivated   ChannelAction = "activated"
	ChannelDeactivated ChannelAction = "deactivated"
	ChannelFailed      ChannelAction = "failed"
)

// ChannelEvent is published by the actuation engine for each transition.
type ChannelEvent struct {
	Channel  int
	Action   ChannelAction
	Duration time.Duration
	Err      error
	Time     time.Time
}
