// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// The actuator backends and the metrics sinks are both selected this way:
//
//	drivers := factory.NewRegistry[actuation.Driver]()
//	drivers.Register("log", func(conf map[string]any) (actuation.Driver, error) {
//	    var c struct{ Channels int `json:"channels"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewLogDriver(c.Channels, logger.New("actuator")), nil
//	})
//	d, err := drivers.Create(factory.ModuleConfig{Type: "log", Conf: map[string]any{"channels": 19}})
package factory
