// Package actuation drives the dispensing channels of the machine.
//
// A Driver switches one physical output on or off. The Engine layers the
// per-channel state machine (idle -> active -> idle) on top of a Driver,
// converts volumes to pump durations with a Calibration and runs batches of
// channels concurrently, returning only once every channel has finished.
//
// Volume delivery is open loop: a channel stays active for
// amount * SecondsPerML and is then switched off, whatever happens to the
// caller in the meantime.
package actuation
