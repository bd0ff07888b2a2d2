package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/f1dq/pkg/config"
)

func jsonConfig(level string) *config.Config {
	return &config.Config{Env: "test", LogLevel: level, LogFormat: "json"}
}

func resetLevel(t *testing.T) {
	t.Helper()
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
}

func entries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestNewWithWriter_Level(t *testing.T) {
	resetLevel(t)
	var buf bytes.Buffer
	log := NewWithWriter(jsonConfig("warn"), &buf)

	log.Info("loading tables")
	log.Warn("schema drift in results")

	got := entries(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "warn", got[0]["level"])
	assert.Equal(t, "schema drift in results", got[0]["message"])
	assert.Equal(t, "test", got[0]["env"])
	assert.Contains(t, got[0], "time")
}

func TestNewWithWriter_Console(t *testing.T) {
	resetLevel(t)
	var buf bytes.Buffer
	cfg := &config.Config{Env: "development", LogLevel: "info", LogFormat: "console"}

	NewWithWriter(cfg, &buf).WithField("table", "status").Info("loaded table")

	out := buf.String()
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())), out)
	assert.Contains(t, out, "loaded table")
	assert.Contains(t, out, "table=")
	assert.Contains(t, out, "status")
}

func TestNew_WritesToStderr(t *testing.T) {
	resetLevel(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stderr
	os.Stderr = w
	log := New(jsonConfig("info"))
	os.Stderr = orig

	log.Info("run stored")
	require.NoError(t, w.Close())

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"run stored"`)
}

func TestWithFields_Chaining(t *testing.T) {
	resetLevel(t)
	var buf bytes.Buffer
	base := NewWithWriter(jsonConfig("debug"), &buf)

	base.WithFields(map[string]interface{}{
		"table": "lap_times",
		"rows":  3,
	}).WithError(errors.New("cache unavailable")).Warn("falling back to fresh validation")
	base.WithField("check", "nulls").Debug("check finished")

	got := entries(t, &buf)
	require.Len(t, got, 2)

	assert.Equal(t, "lap_times", got[0]["table"])
	assert.Equal(t, float64(3), got[0]["rows"])
	assert.Equal(t, "cache unavailable", got[0]["error"])
	assert.Equal(t, "warn", got[0]["level"])

	assert.Equal(t, "nulls", got[1]["check"])
	assert.NotContains(t, got[1], "table", "derived loggers must not leak fields into the parent")
	assert.NotContains(t, got[1], "error")
}

func TestNop(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.WithFields(map[string]interface{}{"table": "results"}).
			WithError(errors.New("boom")).
			Error("discarded")
		log.Debug("discarded")
	})
}
