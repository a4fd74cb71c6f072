package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration. Everything the pipeline
// needs (credentials, timeouts, rate limits) is carried here explicitly and
// passed into services at construction - no ambient state.
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig `toml:"logging"`
	Session     SessionConfig `toml:"session"`
	Captcha     CaptchaConfig `toml:"captcha"`
	Browser     BrowserConfig `toml:"browser"`
	Scraper     ScraperConfig `toml:"scraper"`
	Storage     StorageConfig `toml:"storage"`
	Output      OutputConfig  `toml:"output"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

// SessionConfig points at the persisted cookie set. The file is written by the
// cookie-import command, never by the pipeline itself.
type SessionConfig struct {
	File string `toml:"file"`
}

// CaptchaConfig configures the external solving service client. Durations are
// strings ("120s") parsed with time.ParseDuration; the *Duration accessors
// fall back to the defaults for empty values.
type CaptchaConfig struct {
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url" validate:"url"`
	Timeout      string `toml:"timeout"`       // e.g., "120s" - overall solve deadline
	PollInterval string `toml:"poll_interval"` // e.g., "5s" - delay between result polls
}

// TimeoutDuration returns the parsed solve deadline.
func (c CaptchaConfig) TimeoutDuration() time.Duration {
	return durationOr(c.Timeout, 120*time.Second)
}

// PollIntervalDuration returns the parsed poll interval.
func (c CaptchaConfig) PollIntervalDuration() time.Duration {
	return durationOr(c.PollInterval, 5*time.Second)
}

type BrowserConfig struct {
	Headless  bool   `toml:"headless"`
	UserAgent string `toml:"user_agent"`
	Width     int    `toml:"width" validate:"min=0"`
	Height    int    `toml:"height" validate:"min=0"`
}

type ScraperConfig struct {
	NavigationTimeout   string `toml:"navigation_timeout"`    // e.g., "30s" - per-page load deadline
	SettleDelay         string `toml:"settle_delay"`          // e.g., "3s" - wait for dynamic content after load
	DelayBetweenTargets string `toml:"delay_between_targets"` // e.g., "3s" - rate limit between consecutive fetches
	Schedule            string `toml:"schedule"`              // Optional cron expression for recurring runs
}

// NavigationTimeoutDuration returns the parsed per-page load deadline.
func (c ScraperConfig) NavigationTimeoutDuration() time.Duration {
	return durationOr(c.NavigationTimeout, 30*time.Second)
}

// SettleDelayDuration returns the parsed post-load settle delay.
func (c ScraperConfig) SettleDelayDuration() time.Duration {
	return durationOr(c.SettleDelay, 3*time.Second)
}

// DelayBetweenTargetsDuration returns the parsed inter-target delay.
func (c ScraperConfig) DelayBetweenTargetsDuration() time.Duration {
	return durationOr(c.DelayBetweenTargets, 3*time.Second)
}

// StorageConfig configures the local record cache.
type StorageConfig struct {
	Enabled   bool   `toml:"enabled"`
	Path      string `toml:"path"`
	Staleness string `toml:"staleness"` // e.g., "24h" - cached records younger than this are not re-fetched
}

// StalenessDuration returns the parsed cache freshness window.
func (c StorageConfig) StalenessDuration() time.Duration {
	return durationOr(c.Staleness, 24*time.Hour)
}

// durationOr parses a duration string, falling back for empty or invalid
// values. Validate surfaces invalid values as errors; this keeps the
// accessors total for callers.
func durationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

type OutputConfig struct {
	Dir      string `toml:"dir"`
	Basename string `toml:"basename"`
}

// DefaultConfig returns the built-in defaults, mirroring what the scraper
// shipped with before configuration moved to a file.
func DefaultConfig() *Config {
	return &Config{
		Environment: "production",
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Session: SessionConfig{
			File: "youtube_session.json",
		},
		Captcha: CaptchaConfig{
			BaseURL:      "https://2captcha.com",
			Timeout:      "120s",
			PollInterval: "5s",
		},
		Browser: BrowserConfig{
			Headless:  false,
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Width:     1280,
			Height:    720,
		},
		Scraper: ScraperConfig{
			NavigationTimeout:   "30s",
			SettleDelay:         "3s",
			DelayBetweenTargets: "3s",
		},
		Storage: StorageConfig{
			Enabled:   true,
			Path:      "./data/tubescope",
			Staleness: "24h",
		},
		Output: OutputConfig{
			Dir:      ".",
			Basename: "results",
		},
	}
}

// LoadConfig loads configuration in priority order: defaults -> file -> env.
// A missing path is only an error when it was explicitly requested.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides keeps the environment variable names the scraper has
// always honored.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("CAPTCHA_API_KEY"); v != "" {
		config.Captcha.APIKey = v
	}
	if v := os.Getenv("CAPTCHA_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			config.Captcha.Timeout = fmt.Sprintf("%ds", secs)
		}
	}
	if v := os.Getenv("DELAY_BETWEEN_PROFILES"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			config.Scraper.DelayBetweenTargets = fmt.Sprintf("%ds", secs)
		}
	}
	if v := os.Getenv("HEADLESS"); v != "" {
		config.Browser.Headless = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("SESSION_FILE"); v != "" {
		config.Session.File = v
	}
}

// Validate checks structural constraints on the loaded configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"captcha.timeout":               c.Captcha.Timeout,
		"captcha.poll_interval":         c.Captcha.PollInterval,
		"scraper.navigation_timeout":    c.Scraper.NavigationTimeout,
		"scraper.settle_delay":          c.Scraper.SettleDelay,
		"scraper.delay_between_targets": c.Scraper.DelayBetweenTargets,
		"storage.staleness":             c.Storage.Staleness,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid configuration: %s %q is not a duration: %w", name, value, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid configuration: %s must not be negative", name)
		}
	}

	if c.Captcha.PollIntervalDuration() <= 0 {
		return fmt.Errorf("invalid configuration: captcha poll_interval must be positive")
	}
	if c.Scraper.NavigationTimeoutDuration() <= 0 {
		return fmt.Errorf("invalid configuration: scraper navigation_timeout must be positive")
	}
	return nil
}
