package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "vllm", cfg.Target.Backend)
	assert.Equal(t, "http://localhost:8000", cfg.Target.Endpoint)

	assert.Equal(t, 1, cfg.Bench.NumClients)
	assert.Equal(t, 64, cfg.Bench.NumRequests)
	assert.Equal(t, 1, cfg.Bench.Warmup)
	assert.True(t, cfg.Bench.Stream)

	assert.Equal(t, 128, cfg.Workload.MeanPromptLength)
	assert.Equal(t, 512, cfg.Workload.MaxPromptLength)
	assert.Equal(t, int64(42), cfg.Workload.Seed)

	assert.Equal(t, 1.0, cfg.Sampling.Temperature)
	assert.Equal(t, 0.9, cfg.Sampling.TopP)

	assert.Equal(t, "./data/loadgen.db", cfg.Database.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
target:
  backend: fastgen
  endpoint: http://bench-node:9000
bench:
  num_clients: 8
  num_requests: 256
workload:
  mean_prompt_length: 64
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fastgen", cfg.Target.Backend)
	assert.Equal(t, "http://bench-node:9000", cfg.Target.Endpoint)
	assert.Equal(t, 8, cfg.Bench.NumClients)
	assert.Equal(t, 256, cfg.Bench.NumRequests)
	assert.Equal(t, 64, cfg.Workload.MeanPromptLength)

	// Unset values keep their defaults.
	assert.Equal(t, 1, cfg.Bench.Warmup)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LOADGEN_BACKEND", "aml")
	t.Setenv("LOADGEN_ENDPOINT", "https://endpoint.azureml.net/score")
	t.Setenv("LOADGEN_API_KEY", "key-from-env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "aml", cfg.Target.Backend)
	assert.Equal(t, "https://endpoint.azureml.net/score", cfg.Target.Endpoint)
	assert.Equal(t, "key-from-env", cfg.Target.APIKey)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Target.Backend = "triton" }, "unknown backend"},
		{"missing endpoint", func(c *Config) { c.Target.Endpoint = "" }, "endpoint is required"},
		{"aml without key", func(c *Config) { c.Target.Backend = "aml" }, "LOADGEN_API_KEY"},
		{"zero clients", func(c *Config) { c.Bench.NumClients = 0 }, "num_clients"},
		{"zero requests", func(c *Config) { c.Bench.NumRequests = 0 }, "num_requests"},
		{"negative warmup", func(c *Config) { c.Bench.Warmup = -1 }, "warmup"},
		{"negative rate", func(c *Config) { c.Bench.RequestsPerSec = -1 }, "requests_per_sec"},
		{"zero prompt length", func(c *Config) { c.Workload.MeanPromptLength = 0 }, "mean_prompt_length"},
		{"cap below mean", func(c *Config) { c.Workload.MaxPromptLength = 64 }, "max_prompt_length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
