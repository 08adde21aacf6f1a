package actuator

import (
	"github.com/kilianp07/mixbot/core/actuation"
	"github.com/kilianp07/mixbot/core/factory"
	"github.com/kilianp07/mixbot/infra/logger"
)

func init() {
	_ = actuation.RegisterDriver("log", func(conf map[string]any) (actuation.Driver, error) {
		var c struct {
			Channels int `json:"channels"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewLogDriver(c.Channels, logger.New("actuator_log")), nil
	})
	_ = actuation.RegisterDriver("gpio", func(conf map[string]any) (actuation.Driver, error) {
		c := GPIOConfig{ActiveLow: true}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewGPIODriver(c, logger.New("actuator_gpio"))
	})
	_ = actuation.RegisterDriver("mqtt", func(conf map[string]any) (actuation.Driver, error) {
		var c MQTTConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewMQTTDriver(c, logger.New("actuator_mqtt"))
	})
}
