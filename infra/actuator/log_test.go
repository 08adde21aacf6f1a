package actuator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mixbot/core/actuation"
	"github.com/kilianp07/mixbot/core/factory"
)

func TestLogDriver(t *testing.T) {
	d := NewLogDriver(0, nil)
	require.Equal(t, DefaultChannels, d.Channels())
	require.NoError(t, d.SetChannelActive(3, true))
	require.True(t, d.Active(3))
	require.Error(t, d.SetChannelActive(19, true))
	require.NoError(t, d.Close())
	require.False(t, d.Active(3))
	require.Equal(t, 1, d.Transitions())
}

func TestDriverFactory(t *testing.T) {
	require.Subset(t, actuation.DriverTypes(), []string{"gpio", "log", "mqtt"})

	d, err := actuation.NewDriver(factory.ModuleConfig{Type: "log", Conf: map[string]any{"channels": "4"}})
	require.NoError(t, err)
	require.Equal(t, 4, d.Channels())

	root := fakeSysfs(t, 4)
	d, err = actuation.NewDriver(factory.ModuleConfig{Type: "gpio", Conf: map[string]any{"pins": []any{4}, "root": root}})
	require.NoError(t, err)
	require.Equal(t, "1", readValue(t, root, 4), "gpio defaults to active-low")

	_, err = actuation.NewDriver(factory.ModuleConfig{Type: "mqtt"})
	require.Error(t, err, "broker is required")

	_, err = actuation.NewDriver(factory.ModuleConfig{Type: "servo"})
	require.Error(t, err)
}
