// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is built once from
// viper (file, CHALLAN_ env vars, CLI flags) and handed to the service factory.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Portal      PortalConfig      `mapstructure:"portal" yaml:"portal"`
	Timeouts    TimeoutConfig     `mapstructure:"timeouts" yaml:"timeouts"`
	Pacing      PacingConfig      `mapstructure:"pacing" yaml:"pacing"`
	Session     SessionConfig     `mapstructure:"session" yaml:"session"`
	Records     RecordsConfig     `mapstructure:"records" yaml:"records"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
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

// ColorConfig names the console color per level; error covers every level above it.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// BrowserConfig holds settings for the single Chrome instance driven by a run.
type BrowserConfig struct {
	Headless    bool           `mapstructure:"headless" yaml:"headless"`
	Debug       bool           `mapstructure:"debug" yaml:"debug"`
	Args        []string       `mapstructure:"args" yaml:"args"`
	DownloadDir string         `mapstructure:"download_dir" yaml:"download_dir"`
	UserAgent   string         `mapstructure:"user_agent" yaml:"user_agent"`
	Timezone    string         `mapstructure:"timezone" yaml:"timezone"`
	Locale      string         `mapstructure:"locale" yaml:"locale"`
	Humanoid    HumanoidConfig `mapstructure:"humanoid" yaml:"humanoid"`
}

// HumanoidConfig toggles pointer simulation and sets the persona sampled for a run.
type HumanoidConfig struct {
	Enabled         bool    `mapstructure:"enabled" yaml:"enabled"`
	FittsA          float64 `mapstructure:"fitts_a" yaml:"fitts_a"`
	FittsB          float64 `mapstructure:"fitts_b" yaml:"fitts_b"`
	PerlinAmplitude float64 `mapstructure:"perlin_amplitude" yaml:"perlin_amplitude"`
	GaussianNoise   float64 `mapstructure:"gaussian_noise" yaml:"gaussian_noise"`
}

// PortalConfig points at the e-filing portal.
type PortalConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// TimeoutConfig bounds every element wait. There is no per-record timeout.
type TimeoutConfig struct {
	Element   time.Duration `mapstructure:"element" yaml:"element"`
	PageReady time.Duration `mapstructure:"page_ready" yaml:"page_ready"`
	Sidebar   time.Duration `mapstructure:"sidebar" yaml:"sidebar"`
	Popup     time.Duration `mapstructure:"popup" yaml:"popup"`
	DualLogin time.Duration `mapstructure:"dual_login" yaml:"dual_login"`
	Download  time.Duration `mapstructure:"download" yaml:"download"`
	Poll      time.Duration `mapstructure:"poll" yaml:"poll"`
}

// PacingConfig controls randomized delays between UI actions.
type PacingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// ActionsPerSecond caps how often the pacer lets an action through. Zero disables the cap.
	ActionsPerSecond float64 `mapstructure:"actions_per_second" yaml:"actions_per_second"`
	// Scale multiplies every jitter range. 1.0 reproduces the stock timings.
	Scale float64 `mapstructure:"scale" yaml:"scale"`
}

// SessionConfig locates the persisted cookie jar.
type SessionConfig struct {
	CookieFile string `mapstructure:"cookie_file" yaml:"cookie_file"`
}

// RecordsConfig locates the record store and the run report.
type RecordsConfig struct {
	Path      string `mapstructure:"path" yaml:"path"`
	ReportDir string `mapstructure:"report_dir" yaml:"report_dir"`
}

// DiagnosticsConfig controls where screenshot/HTML dumps land on failure.
type DiagnosticsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "challan-cli")
	v.SetDefault("logger.log_file", "challan.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.download_dir", "~/Downloads/challans")
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.timezone", "Asia/Kolkata")
	v.SetDefault("browser.locale", "en-IN")
	v.SetDefault("browser.humanoid.enabled", true)
	v.SetDefault("browser.humanoid.fitts_a", 100.0)
	v.SetDefault("browser.humanoid.fitts_b", 120.0)
	v.SetDefault("browser.humanoid.perlin_amplitude", 2.5)
	v.SetDefault("browser.humanoid.gaussian_noise", 0.5)

	// -- Portal --
	v.SetDefault("portal.url", "https://www.incometax.gov.in/iec/foportal/")

	// -- Timeouts --
	v.SetDefault("timeouts.element", "15s")
	v.SetDefault("timeouts.page_ready", "30s")
	v.SetDefault("timeouts.sidebar", "10s")
	v.SetDefault("timeouts.popup", "3s")
	v.SetDefault("timeouts.dual_login", "5s")
	v.SetDefault("timeouts.download", "5s")
	v.SetDefault("timeouts.poll", "250ms")

	// -- Pacing --
	v.SetDefault("pacing.enabled", true)
	v.SetDefault("pacing.actions_per_second", 4.0)
	v.SetDefault("pacing.scale", 1.0)

	// -- Session / Records / Diagnostics --
	v.SetDefault("session.cookie_file", "session_cookies.json")
	v.SetDefault("records.path", "challan_data.xlsx")
	v.SetDefault("records.report_dir", ".")
	v.SetDefault("diagnostics.enabled", true)
	v.SetDefault("diagnostics.dir", ".")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
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

// expandPaths resolves a leading ~ in every filesystem path.
func (c *Config) expandPaths() error {
	paths := []*string{
		&c.Browser.DownloadDir,
		&c.Session.CookieFile,
		&c.Records.Path,
		&c.Records.ReportDir,
		&c.Diagnostics.Dir,
		&c.Logger.LogFile,
	}
	for _, p := range paths {
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

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Portal.URL == "" {
		return fmt.Errorf("portal.url is a required configuration field")
	}
	if c.Browser.DownloadDir == "" {
		return fmt.Errorf("browser.download_dir is a required configuration field")
	}
	if c.Records.Path == "" {
		return fmt.Errorf("records.path is a required configuration field")
	}
	if err := c.Timeouts.Validate(); err != nil {
		return fmt.Errorf("timeouts configuration invalid: %w", err)
	}
	if err := c.Pacing.Validate(); err != nil {
		return fmt.Errorf("pacing configuration invalid: %w", err)
	}
	return nil
}

// Validate checks that every wait is a positive duration.
func (t *TimeoutConfig) Validate() error {
	named := map[string]time.Duration{
		"element":    t.Element,
		"page_ready": t.PageReady,
		"sidebar":    t.Sidebar,
		"popup":      t.Popup,
		"dual_login": t.DualLogin,
		"download":   t.Download,
		"poll":       t.Poll,
	}
	for name, d := range named {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}
	if t.Poll > t.Element {
		return fmt.Errorf("poll interval (%v) must not exceed the element timeout (%v)", t.Poll, t.Element)
	}
	return nil
}

// Validate checks the pacing settings.
func (p *PacingConfig) Validate() error {
	if p.ActionsPerSecond < 0 {
		return fmt.Errorf("actions_per_second must not be negative")
	}
	if p.Enabled && p.Scale <= 0 {
		return fmt.Errorf("scale must be greater than 0 when pacing is enabled")
	}
	return nil
}
