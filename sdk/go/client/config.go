package client

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/objectsync/internal/core/observability/log"
)

// Config holds configuration for the client
type Config struct {
	// Server settings
	ServerURL      string        `json:"server_url" yaml:"server_url"`
	ApplicationID  string        `json:"application_id" yaml:"application_id"`
	ClientKey      string        `json:"client_key" yaml:"client_key"`
	MasterKey      string        `json:"master_key,omitempty" yaml:"master_key,omitempty"`
	SessionToken   string        `json:"session_token,omitempty" yaml:"session_token,omitempty"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// Batching
	MaxBatchSize         int    `json:"max_batch_size" yaml:"max_batch_size"`
	MaxConcurrentBatches int    `json:"max_concurrent_batches" yaml:"max_concurrent_batches"`
	BatchPathPrefix      string `json:"batch_path_prefix,omitempty" yaml:"batch_path_prefix,omitempty"`

	// Logging
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Extra headers sent with every command
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL:            "http://localhost:1337/1",
		RequestTimeout:       30 * time.Second,
		MaxBatchSize:         50,
		MaxConcurrentBatches: 4,
		BatchPathPrefix:      "/1/",
		LogLevel:             log.LevelInfo.String(),
		Headers:              make(map[string]string),
	}
}

// LoadConfig reads a YAML file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfigYAML(f)
}

// LoadConfigYAML decodes YAML on top of the defaults.
func LoadConfigYAML(r io.Reader) (Config, error) {
	c := DefaultConfig()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return c, c.Validate()
}

// Validate checks required fields and limits.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("%w: server_url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: server_url %q is not an absolute url", ErrInvalidConfig, c.ServerURL)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("%w: max_batch_size must be positive", ErrInvalidConfig)
	}
	if c.MaxConcurrentBatches < 1 {
		return fmt.Errorf("%w: max_concurrent_batches must be positive", ErrInvalidConfig)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("%w: request_timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}
