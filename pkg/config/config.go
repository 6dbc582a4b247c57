// Package config holds the typed skillctl configuration. Values come from
// viper, which merges defaults, the config file, SKILLCTL_* environment
// variables and bound command-line flags.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by skillctl
const EnvPrefix = "SKILLCTL"

// Config is the full skillctl configuration
type Config struct {
	Root      string        `mapstructure:"root"`
	Trees     []string      `mapstructure:"trees"`
	Exclude   []string      `mapstructure:"exclude"`
	LogLevel  string        `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`
	Color     string        `mapstructure:"color"`
	Lint      LintConfig    `mapstructure:"lint"`
	Catalog   CatalogConfig `mapstructure:"catalog"`
	Serve     ServeConfig   `mapstructure:"serve"`
	Watch     WatchConfig   `mapstructure:"watch"`
	Tracing   TracingConfig `mapstructure:"tracing"`
}

// LintConfig configures the rule engine and report output
type LintConfig struct {
	Format           string            `mapstructure:"format"`
	FailOn           string            `mapstructure:"fail_on"`
	Baseline         string            `mapstructure:"baseline"`
	RequiredSections []string          `mapstructure:"required_sections"`
	Enable           []string          `mapstructure:"enable"`
	Disable          []string          `mapstructure:"disable"`
	Severity         map[string]string `mapstructure:"severity"`
	Concurrency      int               `mapstructure:"concurrency"`
	CheckAnchors     bool              `mapstructure:"check_anchors"`
	Limits           LimitsConfig      `mapstructure:"limits"`
}

// LimitsConfig holds the numeric content limits
type LimitsConfig struct {
	NameMax        int `mapstructure:"name_max"`
	DescriptionMax int `mapstructure:"description_max"`
	BodyLines      int `mapstructure:"body_lines"`
}

// CatalogConfig locates the SQLite catalog. An empty path uses the default location.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// ServeConfig configures the HTTP API
type ServeConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Sampler string  `mapstructure:"sampler"`
	Ratio   float64 `mapstructure:"ratio"`
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("trees", []string{"skills", "skills-codex", "skills-gemini"})
	v.SetDefault("exclude", []string{})
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")
	v.SetDefault("color", "auto")

	v.SetDefault("lint.format", "text")
	v.SetDefault("lint.fail_on", "error")
	v.SetDefault("lint.baseline", "")
	v.SetDefault("lint.required_sections", []string{})
	v.SetDefault("lint.concurrency", 8)
	v.SetDefault("lint.check_anchors", true)
	v.SetDefault("lint.limits.name_max", 64)
	v.SetDefault("lint.limits.description_max", 1024)
	v.SetDefault("lint.limits.body_lines", 500)

	v.SetDefault("catalog.path", "")

	v.SetDefault("serve.host", "localhost")
	v.SetDefault("serve.port", 8080)

	v.SetDefault("watch.debounce", 500*time.Millisecond)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler", "ratio")
	v.SetDefault("tracing.ratio", 1.0)
}

// Init prepares v to read the config file and environment. When file is
// empty, config.yaml is looked up in $HOME/.skillctl and .skillctl.yaml in
// the working directory, the latter taking precedence. A missing config
// file is not an error.
func Init(v *viper.Viper, file string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", file)
		}
		return nil
	}

	v.SetConfigType("yaml")
	v.SetConfigName("config")
	v.AddConfigPath("$HOME/.skillctl")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read config file")
		}
	}

	v.SetConfigName(".skillctl")
	v.AddConfigPath(".")
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read config file")
		}
	}

	return nil
}

// Load decodes the configuration held by v
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal configuration")
	}

	if cfg.Lint.Concurrency <= 0 {
		cfg.Lint.Concurrency = 1
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that cannot be corrected silently
func (c Config) Validate() error {
	if len(c.Trees) == 0 {
		return errors.New("at least one tree must be configured")
	}
	switch c.Lint.Format {
	case "text", "json", "github":
	default:
		return errors.Errorf("unknown lint format %q, expected text, json or github", c.Lint.Format)
	}
	switch c.Lint.FailOn {
	case "error", "warning", "info", "never":
	default:
		return errors.Errorf("unknown fail_on severity %q", c.Lint.FailOn)
	}
	if c.Lint.Limits.NameMax <= 0 || c.Lint.Limits.DescriptionMax <= 0 || c.Lint.Limits.BodyLines <= 0 {
		return errors.New("lint limits must be positive")
	}
	switch c.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		return errors.Errorf("unknown tracing sampler %q, expected always, never or ratio", c.Tracing.Sampler)
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return errors.Errorf("port must be between 0 and 65535, got %d", c.Serve.Port)
	}
	return nil
}
