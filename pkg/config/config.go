package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// RelayEntry describes one background auto-relay: a receive URI and a send
// URI. The id becomes the session label ("srt0", "rist0", ...).
type RelayEntry struct {
	ID     string `yaml:"id"`
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Relay struct {
		BufferSize  int           `yaml:"buffer_size"`
		ReadTimeout time.Duration `yaml:"read_timeout"`
		IdleWait    time.Duration `yaml:"idle_wait"`
	} `yaml:"relay"`

	Relays []RelayEntry `yaml:"relays"`

	Reconnect struct {
		InitialDelay       time.Duration `yaml:"initial_delay"`
		MaxDelay           time.Duration `yaml:"max_delay"`
		Multiplier         float64       `yaml:"multiplier"`
		StabilityThreshold time.Duration `yaml:"stability_threshold"`
	} `yaml:"reconnect"`

	Monitoring struct {
		PrometheusEnabled bool          `yaml:"prometheus_enabled"`
		BitrateWindow     time.Duration `yaml:"bitrate_window"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limiting"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Relay.BufferSize <= 0 {
		return fmt.Errorf("relay.buffer_size must be > 0")
	}
	if c.Relay.ReadTimeout <= 0 {
		return fmt.Errorf("relay.read_timeout must be > 0")
	}
	if c.Relay.IdleWait <= 0 {
		return fmt.Errorf("relay.idle_wait must be > 0")
	}

	for i, r := range c.Relays {
		if r.Input == "" || r.Output == "" {
			return fmt.Errorf("relays[%d]: input and output must not be empty", i)
		}
	}

	if c.Reconnect.InitialDelay <= 0 {
		return fmt.Errorf("reconnect.initial_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		return fmt.Errorf("reconnect.max_delay must be >= initial_delay")
	}
	if c.Reconnect.Multiplier < 1.0 {
		return fmt.Errorf("reconnect.multiplier must be >= 1.0")
	}
	if c.Reconnect.StabilityThreshold <= 0 {
		return fmt.Errorf("reconnect.stability_threshold must be > 0")
	}

	if c.Monitoring.BitrateWindow <= 0 {
		return fmt.Errorf("monitoring.bitrate_window must be > 0")
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing is enabled")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file falls back to defaults.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile reads configuration from an explicitly named YAML file. Unlike
// Load it treats a missing file as an error instead of falling back to
// defaults.
func LoadFile(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}
	return Load(configPath)
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8000"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Relay.BufferSize = 64 * 1024
	cfg.Relay.ReadTimeout = 1 * time.Second
	cfg.Relay.IdleWait = 5 * time.Millisecond

	cfg.Reconnect.InitialDelay = 1 * time.Second
	cfg.Reconnect.MaxDelay = 30 * time.Second
	cfg.Reconnect.Multiplier = 2.0
	cfg.Reconnect.StabilityThreshold = 60 * time.Second

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.BitrateWindow = 5 * time.Second

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "stream-relay"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 50
	cfg.RateLimiting.Burst = 100

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("STREAMRELAY_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("STREAMRELAY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if in := os.Getenv("STREAMRELAY_SRT_INPUT"); in != "" {
		if out := os.Getenv("STREAMRELAY_SRT_OUTPUT"); out != "" {
			c.Relays = append(c.Relays, RelayEntry{ID: "srt-env", Input: in, Output: out})
		}
	}
	if in := os.Getenv("STREAMRELAY_RIST_INPUT"); in != "" {
		if out := os.Getenv("STREAMRELAY_RIST_OUTPUT"); out != "" {
			c.Relays = append(c.Relays, RelayEntry{ID: "rist-env", Input: in, Output: out})
		}
	}
}
