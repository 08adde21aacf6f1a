package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Infow("info", map[string]any{"channel": 3})
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("engine", &buf)
	l.Infow("channel activated", map[string]any{"channel": 2})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 2, entry["channel"])
}

func TestZerologLoggerLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("engine", &buf)
	l.Infof("hidden")
	l.Warnf("shown")
	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, "shown"))
}
