// Package config loads fssp-search settings from an optional YAML file and
// FSSP_* environment variables.
//
// Keys map to variables by upper-casing and replacing dots with
// underscores: submit.interval is FSSP_SUBMIT_INTERVAL, redis.addr is
// FSSP_REDIS_ADDR.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sternrassler/fssp-client/pkg/client"
	"github.com/Sternrassler/fssp-client/pkg/logging"
	"github.com/Sternrassler/fssp-client/pkg/pipeline"
	"github.com/Sternrassler/fssp-client/pkg/poll"
	"github.com/Sternrassler/fssp-client/pkg/ratelimit"
	"github.com/Sternrassler/fssp-client/pkg/store"
	"github.com/Sternrassler/fssp-client/pkg/submit"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "FSSP"

// ErrMissingToken is returned when no API token is configured.
var ErrMissingToken = errors.New("api token is required (set FSSP_TOKEN)")

// Config holds all settings.
type Config struct {
	Token     string        `mapstructure:"token"`
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`

	Submit SubmitConfig `mapstructure:"submit"`
	Poll   PollConfig   `mapstructure:"poll"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Log    LogConfig    `mapstructure:"log"`

	Policy      string        `mapstructure:"policy"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
	RunTimeout  time.Duration `mapstructure:"run_timeout"`
}

// SubmitConfig holds submission pacing and retry settings.
type SubmitConfig struct {
	Interval            time.Duration `mapstructure:"interval"`
	RetryInterval       time.Duration `mapstructure:"retry_interval"`
	MaxRateLimitRetries int           `mapstructure:"max_rate_limit_retries"`
	MaxTransportRetries int           `mapstructure:"max_transport_retries"`
}

// PollConfig holds sweep settings.
type PollConfig struct {
	MaxSweeps     int           `mapstructure:"max_sweeps"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	Order         string        `mapstructure:"order"`
}

// RedisConfig holds the optional shared state settings. An empty Addr
// disables Redis.
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	Namespace  string        `mapstructure:"namespace"`
	JournalTTL time.Duration `mapstructure:"journal_ttl"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("token", "")
	v.SetDefault("base_url", client.DefaultBaseURL)
	v.SetDefault("user_agent", "fssp-client/0.1.0")
	v.SetDefault("timeout", 30*time.Second)

	v.SetDefault("submit.interval", ratelimit.MinInterval)
	v.SetDefault("submit.retry_interval", submit.DefaultRetryInterval)
	v.SetDefault("submit.max_rate_limit_retries", 0)
	v.SetDefault("submit.max_transport_retries", 0)

	v.SetDefault("poll.max_sweeps", 1)
	v.SetDefault("poll.sweep_interval", 30*time.Second)
	v.SetDefault("poll.initial_delay", time.Duration(0))
	v.SetDefault("poll.order", string(store.LIFO))

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.namespace", "fssp")
	v.SetDefault("redis.journal_ttl", 24*time.Hour)

	v.SetDefault("log.level", string(logging.LevelInfo))
	v.SetDefault("log.pretty", false)

	v.SetDefault("policy", string(pipeline.PolicyBestEffort))
	v.SetDefault("metrics_addr", "")
	v.SetDefault("run_timeout", time.Duration(0))
}

// Load reads path (if not empty) and the environment, then validates the
// result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}
	if c.Submit.Interval < ratelimit.MinInterval {
		return fmt.Errorf("submit.interval %v is below the service minimum of %v", c.Submit.Interval, ratelimit.MinInterval)
	}
	if c.Submit.RetryInterval <= 0 {
		return fmt.Errorf("submit.retry_interval must be positive")
	}
	if c.Submit.MaxRateLimitRetries < 0 || c.Submit.MaxTransportRetries < 0 {
		return fmt.Errorf("submit retry limits must not be negative")
	}
	if c.Poll.MaxSweeps < 1 {
		return fmt.Errorf("poll.max_sweeps must be at least 1, got %d", c.Poll.MaxSweeps)
	}
	if _, err := store.ParseOrder(c.Poll.Order); err != nil {
		return err
	}
	if _, err := pipeline.ParsePolicy(c.Policy); err != nil {
		return err
	}
	return nil
}

// ClientConfig returns the search service client settings.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:   c.BaseURL,
		Token:     c.Token,
		UserAgent: c.UserAgent,
		Timeout:   c.Timeout,
	}
}

// SubmitterConfig returns the submission retry settings.
func (c *Config) SubmitterConfig() submit.Config {
	return submit.Config{
		RetryInterval:          c.Submit.RetryInterval,
		MaxRateLimitRetries:    c.Submit.MaxRateLimitRetries,
		MaxTransportRetries:    c.Submit.MaxTransportRetries,
		TransportRetryInterval: c.Submit.RetryInterval,
	}
}

// PollerConfig returns the sweep settings. Validate has checked the order.
func (c *Config) PollerConfig() poll.Config {
	order, _ := store.ParseOrder(c.Poll.Order)
	return poll.Config{
		MaxSweeps:     c.Poll.MaxSweeps,
		SweepInterval: c.Poll.SweepInterval,
		InitialDelay:  c.Poll.InitialDelay,
		Order:         order,
	}
}

// CompletionPolicy returns the run policy. Validate has checked it.
func (c *Config) CompletionPolicy() pipeline.Policy {
	p, _ := pipeline.ParsePolicy(c.Policy)
	return p
}

// LoggingConfig returns the logger settings without an output.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
