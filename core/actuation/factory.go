package actuation

import "github.com/kilianp07/mixbot/core/factory"

var driverRegistry = factory.NewRegistry[Driver]()

// RegisterDriver adds a driver factory identified by name.
func RegisterDriver(name string, f factory.Factory[Driver]) error {
	return driverRegistry.Register(name, f)
}

// NewDriver creates the Driver selected by cfg.Type.
func NewDriver(cfg factory.ModuleConfig) (Driver, error) {
	return driverRegistry.Create(cfg)
}

// DriverTypes lists the registered backends.
func DriverTypes() []string { return driverRegistry.Types() }
