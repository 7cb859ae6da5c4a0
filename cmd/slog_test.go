package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging_JSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	require.NoError(t, setupLogging(&buf, "warn"))

	slog.Info("dropped")
	slog.Warn("kept", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "v", entry["k"])
}

func TestSetupLogging_InvalidLevel(t *testing.T) {
	assert.Error(t, setupLogging(&bytes.Buffer{}, "loud"))
}

func TestTrimSourcePath(t *testing.T) {
	assert.Equal(t, "internal/gate/gate.go", trimSourcePath("/home/dev/authgate/internal/gate/gate.go", "/authgate/"))
	assert.Equal(t, "github.com/x/y.go", trimSourcePath("/go/src/github.com/x/y.go", "/authgate/"))
	assert.Equal(t, "y.go", trimSourcePath("y.go", "/authgate/"))
}
