package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Format: "json", Output: &buf})

	logger.Info("hello", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestSetup_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "warn", Format: "json", Output: &buf})

	logger.Info("suppressed")
	assert.Zero(t, buf.Len())

	logger.Warn("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestContextHandler_AddsContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithRunID(context.Background(), "run-abc")
	ctx = WithWorkerID(ctx, 3)
	ctx = WithBackend(ctx, "vllm")

	logger.InfoContext(ctx, "call complete")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-abc", entry["run_id"])
	assert.Equal(t, float64(3), entry["worker_id"])
	assert.Equal(t, "vllm", entry["backend"])
}

func TestLogger_WithContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	Setup(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithWorkerID(context.Background(), 7)
	Info(ctx, "drain start")

	assert.Contains(t, buf.String(), "worker_id")
	assert.Contains(t, buf.String(), "drain start")
}
