// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

// Config captures every configuration knob. Values originate from Viper so
// they can come from the config file, environment variables, or CLI flags.
type Config struct {
	Scraper ScraperConfig `mapstructure:"scraper"`
	Output  OutputConfig  `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ScraperConfig governs the fetch loop.
type ScraperConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	UserAgent    string        `mapstructure:"user_agent"`
	MaxRPS       float64       `mapstructure:"max_rps"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BackoffBase  time.Duration `mapstructure:"backoff_base"`
	BackoffMax   time.Duration `mapstructure:"backoff_max"`
	ExistingMode string        `mapstructure:"existing_mode"`
	// TLSSkipVerify disables certificate verification. Never set this in
	// production.
	TLSSkipVerify bool `mapstructure:"tls_skip_verify"`
}

// OutputConfig locates the corpus file.
type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig controls the optional debug/metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	Verbose     bool `mapstructure:"verbose"`
}

// Load builds a Config from the given Viper instance and fails fast on any
// invalid combination, before a single request is made.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the whole configuration tree.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Scraper),
		validation.Field(&c.Output),
		validation.Field(&c.Metrics),
	)
}

// Validate checks the scraper section.
func (c ScraperConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.UserAgent, validation.Required),
		validation.Field(&c.MaxRPS, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.BackoffBase, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.BackoffMax, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.ExistingMode, validation.Required, validation.In("add", "update")),
	)
}

// Validate checks the output section.
func (c OutputConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
	)
}

// Validate checks the metrics section.
func (c MetricsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required.When(c.Enabled)),
	)
}
