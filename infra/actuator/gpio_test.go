package actuator

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSysfs creates gpioN directories for pins so that export is skipped.
func fakeSysfs(t *testing.T, pins ...int) string {
	t.Helper()
	root := t.TempDir()
	for _, p := range pins {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "gpio"+strconv.Itoa(p)), 0o755))
	}
	return root
}

func readValue(t *testing.T, root string, pin int) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, "gpio"+strconv.Itoa(pin), "value"))
	require.NoError(t, err)
	return string(b)
}

func TestGPIODriverActiveLow(t *testing.T) {
	root := fakeSysfs(t, 4, 17)
	d, err := NewGPIODriver(GPIOConfig{Pins: []int{4, 17}, ActiveLow: true, Root: root}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, d.Channels())

	dir, err := os.ReadFile(filepath.Join(root, "gpio4", "direction"))
	require.NoError(t, err)
	require.Equal(t, "out", string(dir))
	require.Equal(t, "1", readValue(t, root, 4), "inactive is high on an active-low board")

	require.NoError(t, d.SetChannelActive(1, true))
	require.Equal(t, "0", readValue(t, root, 17))
	require.NoError(t, d.Close())
	require.Equal(t, "1", readValue(t, root, 17))
}

func TestGPIODriverActiveHigh(t *testing.T) {
	root := fakeSysfs(t, 5)
	d, err := NewGPIODriver(GPIOConfig{Pins: []int{5}, Root: root}, nil)
	require.NoError(t, err)
	require.Equal(t, "0", readValue(t, root, 5))
	require.NoError(t, d.SetChannelActive(0, true))
	require.Equal(t, "1", readValue(t, root, 5))
	require.Error(t, d.SetChannelActive(1, true))
}

func TestGPIODriverExportsMissingLines(t *testing.T) {
	root := t.TempDir()
	// without a kernel nothing creates gpio6 after export, so direction fails
	_, err := NewGPIODriver(GPIOConfig{Pins: []int{6}, Root: root}, nil)
	require.Error(t, err)
	b, rerr := os.ReadFile(filepath.Join(root, "export"))
	require.NoError(t, rerr)
	require.Equal(t, "6", string(b))
}

func TestGPIODriverRejectsDuplicatePins(t *testing.T) {
	_, err := NewGPIODriver(GPIOConfig{Pins: []int{4, 4}, Root: t.TempDir()}, nil)
	require.Error(t, err)
}

func TestDefaultPins(t *testing.T) {
	require.Len(t, DefaultPins, DefaultChannels)
	seen := map[int]bool{}
	for _, p := range DefaultPins {
		require.False(t, seen[p], "duplicate pin %d", p)
		seen[p] = true
	}
}
