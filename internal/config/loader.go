// Package config loads benchmark settings through viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/noveum/gatebench/internal/core"
)

// EnvPrefix is the prefix of environment overrides, e.g. GATEBENCH_API_KEY.
const EnvPrefix = "GATEBENCH"

// Default endpoints.
const (
	DefaultGatewayURL  = "https://gate.noveum.ai/v1/chat/completions"
	DefaultGatewayName = "Noveum Gateway"
	DefaultDirectURL   = "https://api.groq.com/openai/v1/chat/completions"
	DefaultDirectName  = "Direct Groq"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every key with its default so environment variables
// can override nested keys.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("requests", 10)
	v.SetDefault("rounds", 3)
	v.SetDefault("max_retries", 3)
	v.SetDefault("pair_delay", "1s")
	v.SetDefault("round_cooldown", "5s")

	v.SetDefault("rate_limit.rpm", 10)
	v.SetDefault("rate_limit.window", "60s")

	v.SetDefault("request.timeout", "60s")
	v.SetDefault("request.failure_delay", "1s")
	v.SetDefault("request.rate_limit_delay", "5s")

	v.SetDefault("payload.model", core.DefaultModel)
	v.SetDefault("payload.role", core.DefaultRole)
	v.SetDefault("payload.prompt", core.DefaultPrompt)
	v.SetDefault("payload.max_tokens", core.DefaultMaxTokens)

	v.SetDefault("endpoints.gateway.name", DefaultGatewayName)
	v.SetDefault("endpoints.gateway.url", DefaultGatewayURL)
	v.SetDefault("endpoints.gateway.headers", map[string]string{"x-provider": "groq"})
	v.SetDefault("endpoints.direct.name", DefaultDirectName)
	v.SetDefault("endpoints.direct.url", DefaultDirectURL)
	v.SetDefault("endpoints.direct.headers", map[string]string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dir", ".")

	v.SetDefault("output.format", "table")
	v.SetDefault("output.path", "")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("mock.host", "127.0.0.1")
	v.SetDefault("mock.port", 8089)
	v.SetDefault("mock.chunks", 20)
	v.SetDefault("mock.chunk_delay", "20ms")
	v.SetDefault("mock.rate_limit_every", 0)
	v.SetDefault("mock.retry_after", "2s")
	v.SetDefault("mock.fail_every", 0)
	v.SetDefault("mock.require_header", "")
}

// ConfigureEnv enables GATEBENCH_* overrides with "." mapped to "_".
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load decodes the viper state into a Config. It does not validate.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate reports every problem that would make a run meaningless. It runs
// before any request is sent.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.APIKey) == "" {
		problems = append(problems, "api key is required (--api-key or GATEBENCH_API_KEY)")
	}
	if c.Requests <= 0 {
		problems = append(problems, fmt.Sprintf("requests must be positive, got %d", c.Requests))
	}
	if c.Rounds <= 0 {
		problems = append(problems, fmt.Sprintf("rounds must be positive, got %d", c.Rounds))
	}
	if c.RateLimit.RPM > 0 && c.RateLimit.Window <= 0 {
		problems = append(problems, "rate_limit.window must be positive when rate_limit.rpm is set")
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"pair_delay", c.PairDelay},
		{"round_cooldown", c.RoundCooldown},
		{"request.timeout", c.Request.Timeout},
	} {
		if d.value < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative", d.name))
		}
	}
	for name, endpoint := range map[string]EndpointConfig{
		"endpoints.gateway.url": c.Endpoints.Gateway,
		"endpoints.direct.url":  c.Endpoints.Direct,
	} {
		if err := validateURL(endpoint.URL); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// GetConfig returns the most recently loaded configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}
