package iologger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/clasier/catdb/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in  string
		out slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, v := range tests {
		assert.Equal(t, v.out, parseLevel(v.in), v.in)
	}
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler(&buf, config.LogConfig{Format: "json", Level: "warn"})
	l := slog.New(h)
	l.Info("hidden")
	l.Warn("shown", "subject", "MATH")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"subject":"MATH"`)

	buf.Reset()
	l = slog.New(newHandler(&buf, config.LogConfig{Format: "text"}))
	l.Info("msg", "k", "v")
	assert.Contains(t, buf.String(), "k=v")
}

func TestInitFile(t *testing.T) {
	dir := t.TempDir()
	defer slog.SetDefault(slog.Default())

	err := Init(dir, config.LogConfig{Format: "json", Level: "info", Destination: "file"})
	require.NoError(t, err)
	slog.Info("written")

	data, err := os.ReadFile(filepath.Join(dir, LogFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")

	err = Init(filepath.Join(dir, "missing"), config.LogConfig{Destination: "file"})
	assert.Error(t, err)
}
