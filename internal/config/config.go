// Package config provides configuration management for rspace2elabftw.
//
// Configuration is resolved from three layers, highest priority first:
// command-line flags, environment variables (API_HOST_URL, API_KEY), and an
// optional YAML config file. A .env file in the working directory is loaded
// into the environment before resolution.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
	// AppDir is the configuration directory searched for the config file.
	AppDir = ".rspace2elabftw"

	// EnvHostURL is the environment variable holding the destination API base URL.
	EnvHostURL = "API_HOST_URL"
	// EnvAPIKey is the environment variable holding the destination API key.
	EnvAPIKey = "API_KEY"
)

// DefaultTimeout is the per-request HTTP timeout for destination API calls.
const DefaultTimeout = 30 * time.Second

// Config represents the resolved importer configuration.
type Config struct {
	// HostURL is the destination API base URL (e.g. https://elab.example.org/api/v2).
	HostURL string `yaml:"host_url" mapstructure:"host_url"`

	// APIKey is the bearer credential for the destination API.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Insecure disables TLS certificate verification on API calls.
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`

	// Strict aborts the whole run on the first record failure instead of
	// skipping the record and continuing.
	Strict bool `yaml:"strict" mapstructure:"strict"`

	// Concurrency is the number of parallel attachment uploads per record.
	// Records themselves are always processed sequentially.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`

	// Exclude is a list of doublestar glob patterns matched against archive
	// part IDs; matching parts are never imported. Form definition files
	// (*_form.xml) are always excluded regardless of this list.
	Exclude []string `yaml:"exclude,omitempty" mapstructure:"exclude"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// LogFile is the path of the debug log file. Empty disables file logging.
	LogFile string `yaml:"log_file,omitempty" mapstructure:"log_file"`
}

// Default returns the configuration defaults applied before any layer is read.
func Default() *Config {
	return &Config{
		Concurrency: 1,
		Timeout:     DefaultTimeout,
	}
}

// SetDefaults registers the default values on a viper instance so that
// config-file and env layers merge on top of them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("host_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("insecure", false)
	v.SetDefault("strict", false)
	v.SetDefault("log_file", "")
}

// BindEnv wires the flat environment variable names the tool documents.
// viper's automatic env handling is not used because the variables are not
// prefixed (API_HOST_URL, API_KEY).
func BindEnv(v *viper.Viper) {
	_ = v.BindEnv("host_url", EnvHostURL)
	_ = v.BindEnv("api_key", EnvAPIKey)
}

// Load resolves the configuration from a prepared viper instance and
// validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for fatal problems. It runs before any
// archive is opened or network call is made.
func (c *Config) Validate() error {
	if c.HostURL == "" {
		return fmt.Errorf("missing destination host URL: set %s (example: https://elab.example.org/api/v2)", EnvHostURL)
	}
	u, err := url.Parse(c.HostURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid destination host URL %q: expected an absolute URL", c.HostURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid destination host URL %q: scheme must be http or https", c.HostURL)
	}
	if c.APIKey == "" {
		return fmt.Errorf("missing API key: set %s (example: 3-86e9f9...3f6f2e3)", EnvAPIKey)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	for _, pattern := range c.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return nil
}

// Redacted returns a copy of the configuration safe for display, with the
// API key masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.APIKey != "" {
		out.APIKey = redactKey(out.APIKey)
	}
	return &out
}

func redactKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}
