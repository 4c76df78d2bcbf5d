package client

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, 50, c.MaxBatchSize)
	assert.Equal(t, 4, c.MaxConcurrentBatches)
}

func TestLoadConfigYAMLOverridesDefaults(t *testing.T) {
	c, err := LoadConfigYAML(strings.NewReader(`
server_url: https://api.example.com/1
application_id: app
client_key: key
request_timeout: 5s
max_batch_size: 10
headers:
  X-Tenant: blue
`))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/1", c.ServerURL)
	assert.Equal(t, "app", c.ApplicationID)
	assert.Equal(t, 5*time.Second, c.RequestTimeout)
	assert.Equal(t, 10, c.MaxBatchSize)
	assert.Equal(t, 4, c.MaxConcurrentBatches)
	assert.Equal(t, "blue", c.Headers["X-Tenant"])
}

func TestLoadConfigYAMLEmptyKeepsDefaults(t *testing.T) {
	c, err := LoadConfigYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ServerURL, c.ServerURL)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objectsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: http://localhost:9000/1\nlog_level: debug\n"), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/1", c.ServerURL)
	assert.Equal(t, "debug", c.LogLevel)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty url", func(c *Config) { c.ServerURL = "" }},
		{"relative url", func(c *Config) { c.ServerURL = "/1" }},
		{"zero batch size", func(c *Config) { c.MaxBatchSize = 0 }},
		{"zero concurrency", func(c *Config) { c.MaxConcurrentBatches = 0 }},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}

	_, err := LoadConfigYAML(strings.NewReader("max_batch_size: [1"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
