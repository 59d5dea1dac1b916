// Package config loads runtime configuration through viper: defaults in
// code, overridden by an optional YAML config file, overridden by
// EFILING_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the runtime configuration for the e-filing service.
type Config struct {
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	// SigningSecret signs handoff credentials. Required for the serve
	// and token paths; its absence there is a startup failure.
	SigningSecret string `mapstructure:"signing_secret"`

	// TokenTTL is the handoff credential lifetime.
	TokenTTL time.Duration `mapstructure:"token_ttl"`

	// RunBudget is the wall-clock ceiling for one bot run.
	RunBudget time.Duration `mapstructure:"run_budget"`

	// BridgeWait is the reply window for one bridge request.
	BridgeWait time.Duration `mapstructure:"bridge_wait"`

	// MaxConcurrentRuns caps simultaneous bot runs server-wide.
	MaxConcurrentRuns int64 `mapstructure:"max_concurrent_runs"`

	// DriverRate limits portal driver calls per second. Zero disables
	// the limiter.
	DriverRate float64 `mapstructure:"driver_rate"`
}

const envPrefix = "EFILING"

func setDefaults(v *viper.Viper) {
	// An explicit empty default keeps the key visible to Unmarshal so
	// the env-only override path works.
	v.SetDefault("signing_secret", "")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("token_ttl", 30*time.Minute)
	v.SetDefault("run_budget", 600*time.Second)
	v.SetDefault("bridge_wait", 5*time.Second)
	v.SetDefault("max_concurrent_runs", 8)
	v.SetDefault("driver_rate", 0.0)
}

// Load reads configuration. cfgFile may be empty, in which case only
// defaults and environment variables apply.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.RunBudget <= 0 {
		return fmt.Errorf("run_budget must be positive")
	}
	if c.BridgeWait <= 0 {
		return fmt.Errorf("bridge_wait must be positive")
	}
	if c.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("max_concurrent_runs must be positive")
	}
	return nil
}

// RequireSigningSecret fails fast when the secret is missing. Called on
// the paths that mint credentials, before any job starts.
func (c *Config) RequireSigningSecret() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("signing secret is not configured (set %s_SIGNING_SECRET)", envPrefix)
	}
	return nil
}
