// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Tolerance modes accepted by consistency.mode.
const (
	ToleranceAbsolute = "absolute"
	ToleranceRelative = "relative"
)

// Browser kinds the session factory knows how to negotiate.
const (
	BrowserChrome   = "chrome"
	BrowserChromium = "chromium"
	BrowserEdge     = "edge"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Target      TargetConfig      `mapstructure:"target" yaml:"target"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Interaction InteractionConfig `mapstructure:"interaction" yaml:"interaction"`
	API         APIConfig         `mapstructure:"api" yaml:"api"`
	Consistency ConsistencyConfig `mapstructure:"consistency" yaml:"consistency"`
	Runner      RunnerConfig      `mapstructure:"runner" yaml:"runner"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// TargetConfig identifies the site under test.
type TargetConfig struct {
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// BrowserConfig controls how sessions are created.
// RemoteURL is the single switch between a local browser and a remote pool.
type BrowserConfig struct {
	Kind            string        `mapstructure:"kind" yaml:"kind"`
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	RemoteURL       string        `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath        string        `mapstructure:"exec_path" yaml:"exec_path"`
	WindowWidth     int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int           `mapstructure:"window_height" yaml:"window_height"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout" yaml:"page_load_timeout"`
	CreateTimeout   time.Duration `mapstructure:"create_timeout" yaml:"create_timeout"`
}

// IsRemote reports whether sessions should be obtained from a remote pool.
func (b BrowserConfig) IsRemote() bool {
	return strings.TrimSpace(b.RemoteURL) != ""
}

// InteractionConfig bounds every wait and retry performed against the page.
type InteractionConfig struct {
	WaitTimeout   time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	StaleAttempts int           `mapstructure:"stale_attempts" yaml:"stale_attempts"`
	StaleDelay    time.Duration `mapstructure:"stale_delay" yaml:"stale_delay"`
}

// APIConfig configures the remote data services client.
type APIConfig struct {
	BaseURL       string            `mapstructure:"base_url" yaml:"base_url"`
	Timeout       time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries    int               `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff  time.Duration     `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	RateLimit     float64           `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst     int               `mapstructure:"rate_burst" yaml:"rate_burst"`
	SearchPath    string            `mapstructure:"search_path" yaml:"search_path"`
	InventoryPath string            `mapstructure:"inventory_path" yaml:"inventory_path"`
	Headers       map[string]string `mapstructure:"headers" yaml:"headers"`
}

// ConsistencyConfig carries the comparison tolerance. Mode and Tolerance are
// deliberately left without defaults; a run must state them.
type ConsistencyConfig struct {
	Mode       string        `mapstructure:"mode" yaml:"mode"`
	Tolerance  float64       `mapstructure:"tolerance" yaml:"tolerance"`
	SkewWindow time.Duration `mapstructure:"skew_window" yaml:"skew_window"`
}

// RunnerConfig controls unit orchestration and artifacts.
type RunnerConfig struct {
	Workers             int           `mapstructure:"workers" yaml:"workers"`
	UnitTimeout         time.Duration `mapstructure:"unit_timeout" yaml:"unit_timeout"`
	ArtifactDir         string        `mapstructure:"artifact_dir" yaml:"artifact_dir"`
	ScreenshotOnFailure bool          `mapstructure:"screenshot_on_failure" yaml:"screenshot_on_failure"`
	AuthEnabled         bool          `mapstructure:"auth_enabled" yaml:"auth_enabled"`
	MetricsFile         string        `mapstructure:"metrics_file" yaml:"metrics_file"`
	SearchTerms         []string      `mapstructure:"search_terms" yaml:"search_terms"`
	ProductPath         string        `mapstructure:"product_path" yaml:"product_path"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
// Consistency mode and tolerance stay empty.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SetDefaults registers every default value on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "crosscheck")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Target --
	v.SetDefault("target.base_url", "https://www.nykaa.com")
	v.SetDefault("target.environment", "production")

	// -- Browser --
	v.SetDefault("browser.kind", BrowserChrome)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.page_load_timeout", "30s")
	v.SetDefault("browser.create_timeout", "45s")

	// -- Interaction --
	v.SetDefault("interaction.wait_timeout", "10s")
	v.SetDefault("interaction.poll_interval", "250ms")
	v.SetDefault("interaction.stale_attempts", 3)
	v.SetDefault("interaction.stale_delay", "500ms")

	// -- API --
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.max_retries", 2)
	v.SetDefault("api.retry_backoff", "1s")
	v.SetDefault("api.rate_limit", 5.0)
	v.SetDefault("api.rate_burst", 2)
	v.SetDefault("api.search_path", "/gludo/searchSuggestions")
	v.SetDefault("api.inventory_path", "/gateway-api/inventory/data/json/")

	// -- Consistency --
	v.SetDefault("consistency.skew_window", "2m")

	// -- Runner --
	v.SetDefault("runner.workers", 2)
	v.SetDefault("runner.unit_timeout", "3m")
	v.SetDefault("runner.artifact_dir", "reports")
	v.SetDefault("runner.screenshot_on_failure", true)
	v.SetDefault("runner.auth_enabled", false)
	v.SetDefault("runner.search_terms", []string{"lipstick", "face wash", "moisturizer"})
	v.SetDefault("runner.product_path", "")
}

// DefaultUserAgent is a current desktop Chrome identification string.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewConfigFromViper unmarshals the viper state, expands user paths and validates the result.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading "~" in filesystem settings.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Runner.ArtifactDir, &c.Runner.MetricsFile, &c.Logger.LogFile, &c.Browser.ExecPath} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// APIBaseURL returns the API base, defaulting to the target site.
func (c *Config) APIBaseURL() string {
	if c.API.BaseURL != "" {
		return c.API.BaseURL
	}
	return c.Target.BaseURL
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	var errs []error

	if _, err := url.ParseRequestURI(c.Target.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("target.base_url must be an absolute URL: %w", err))
	}
	if c.Browser.IsRemote() {
		if _, err := url.ParseRequestURI(c.Browser.RemoteURL); err != nil {
			errs = append(errs, fmt.Errorf("browser.remote_url is not a valid URL: %w", err))
		}
	}
	if c.Browser.PageLoadTimeout <= 0 || c.Browser.CreateTimeout <= 0 {
		errs = append(errs, errors.New("browser.page_load_timeout and browser.create_timeout must be positive"))
	}
	if c.Interaction.WaitTimeout <= 0 {
		errs = append(errs, errors.New("interaction.wait_timeout must be positive"))
	}
	if c.Interaction.PollInterval <= 0 {
		errs = append(errs, errors.New("interaction.poll_interval must be positive"))
	}
	if c.Interaction.StaleAttempts < 1 {
		errs = append(errs, errors.New("interaction.stale_attempts must be at least 1"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.API.MaxRetries < 0 {
		errs = append(errs, errors.New("api.max_retries cannot be negative"))
	}
	if err := c.Consistency.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Runner.Workers <= 0 {
		errs = append(errs, errors.New("runner.workers must be a positive integer"))
	}
	return errors.Join(errs...)
}

// Validate requires an explicit tolerance mode and a non-negative value.
func (cc ConsistencyConfig) Validate() error {
	switch cc.Mode {
	case ToleranceAbsolute, ToleranceRelative:
	case "":
		return errors.New("consistency.mode is required (absolute or relative)")
	default:
		return fmt.Errorf("consistency.mode %q is not supported", cc.Mode)
	}
	if cc.Tolerance < 0 {
		return errors.New("consistency.tolerance cannot be negative")
	}
	return nil
}
