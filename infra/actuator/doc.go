// Package actuator contains the hardware backends of the actuation engine.
//
//   - log: no hardware, every transition is logged and kept in memory
//   - gpio: Linux sysfs GPIO lines driving a relay board
//   - mqtt: a networked relay board accepting cmnd/<prefix>/POWER<n> ON|OFF
//
// Importing the package registers all three with actuation.RegisterDriver.
package actuator
