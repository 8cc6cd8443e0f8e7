package config

import (
	"time"

	"github.com/noveum/gatebench/internal/core"
)

// Config is the complete benchmark configuration. Values come from defaults,
// an optional YAML file, GATEBENCH_* environment variables and flags, in
// increasing order of precedence.
type Config struct {
	APIKey        string          `mapstructure:"api_key"`
	Requests      int             `mapstructure:"requests"`
	Rounds        int             `mapstructure:"rounds"`
	MaxRetries    int             `mapstructure:"max_retries"`
	PairDelay     time.Duration   `mapstructure:"pair_delay"`
	RoundCooldown time.Duration   `mapstructure:"round_cooldown"`
	RateLimit     RateLimitConfig `mapstructure:"rate_limit"`
	Request       RequestConfig   `mapstructure:"request"`
	Payload       PayloadConfig   `mapstructure:"payload"`
	Endpoints     EndpointsConfig `mapstructure:"endpoints"`
	Logging       LoggingConfig   `mapstructure:"logging"`
	Output        OutputConfig    `mapstructure:"output"`
	Metrics       MetricsConfig   `mapstructure:"metrics"`
	Mock          MockConfig      `mapstructure:"mock"`
}

// RateLimitConfig bounds admissions per endpoint within a sliding window.
// RPM <= 0 disables limiting.
type RateLimitConfig struct {
	RPM    int           `mapstructure:"rpm"`
	Window time.Duration `mapstructure:"window"`
}

// RequestConfig tunes a single HTTP request and its retries.
type RequestConfig struct {
	// Timeout bounds one attempt including the streamed body. Zero disables it.
	Timeout        time.Duration `mapstructure:"timeout"`
	FailureDelay   time.Duration `mapstructure:"failure_delay"`
	RateLimitDelay time.Duration `mapstructure:"rate_limit_delay"`
}

// PayloadConfig describes the chat-completion body.
type PayloadConfig struct {
	Model     string `mapstructure:"model"`
	Role      string `mapstructure:"role"`
	Prompt    string `mapstructure:"prompt"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// EndpointsConfig holds the two compared endpoints.
type EndpointsConfig struct {
	Gateway EndpointConfig `mapstructure:"gateway"`
	Direct  EndpointConfig `mapstructure:"direct"`
}

// EndpointConfig describes one endpoint. Headers are added to every request
// after Authorization and Content-Type.
type EndpointConfig struct {
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// LoggingConfig controls the console level and the per-run log file directory.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Dir receives gatebench_YYYYMMDD_HHMMSS.log; empty disables the file.
	Dir string `mapstructure:"dir"`
}

// OutputConfig selects the report format and destination.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	// Path is a file path; empty or "-" writes to stdout.
	Path string `mapstructure:"path"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// MockConfig configures the mock upstream served by `gatebench mock`.
type MockConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Chunks         int           `mapstructure:"chunks"`
	ChunkDelay     time.Duration `mapstructure:"chunk_delay"`
	RateLimitEvery int           `mapstructure:"rate_limit_every"`
	RetryAfter     time.Duration `mapstructure:"retry_after"`
	FailEvery      int           `mapstructure:"fail_every"`
	RequireHeader  string        `mapstructure:"require_header"`
}

// GatewayEndpoint returns endpoint A.
func (c *Config) GatewayEndpoint() core.Endpoint {
	return c.Endpoints.Gateway.endpoint(core.LabelGateway)
}

// DirectEndpoint returns endpoint B.
func (c *Config) DirectEndpoint() core.Endpoint {
	return c.Endpoints.Direct.endpoint(core.LabelDirect)
}

// PayloadOptions returns the request body settings.
func (c *Config) PayloadOptions() core.PayloadOptions {
	return core.PayloadOptions{
		Model:     c.Payload.Model,
		Role:      c.Payload.Role,
		Prompt:    c.Payload.Prompt,
		MaxTokens: c.Payload.MaxTokens,
	}
}

func (e EndpointConfig) endpoint(label string) core.Endpoint {
	headers := make(map[string]string, len(e.Headers))
	for k, v := range e.Headers {
		headers[k] = v
	}
	return core.Endpoint{
		Label:   label,
		Name:    e.Name,
		URL:     e.URL,
		Headers: headers,
	}
}
