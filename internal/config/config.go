package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const appName = "threadkeeper"

// Traversal modes
const (
	ModeTargetOnly     = "target_only"
	ModeSearchFiltered = "search_filtered"
	ModeSearchAll      = "search_all"
	ModeKeywordTrend   = "keyword_trend"
)

// Environment overrides for secrets
const (
	EnvAnthropicKey = "THREADKEEPER_ANTHROPIC_API_KEY"
	EnvSMTPPass     = "THREADKEEPER_SMTP_PASS"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	LogLevel string         `toml:"log_level"`
	Target   TargetConfig   `toml:"target"`
	Limits   LimitsConfig   `toml:"limits"`
	Filters  FiltersConfig  `toml:"filters"`
	Scraping ScrapingConfig `toml:"scraping"`
	OCR      OCRConfig      `toml:"ocr"`
	Refiner  RefinerConfig  `toml:"refiner"`
	Schedule ScheduleConfig `toml:"schedule"`
	Email    EmailConfig    `toml:"email"`
}

type TargetConfig struct {
	Author string `toml:"author"`
	Mode   string `toml:"mode"`
}

type LimitsConfig struct {
	MaxUnitsToRegister int `toml:"max_units_to_register"`
	URLBufferFactor    int `toml:"url_buffer_factor"`
	MaxScrolls         int `toml:"max_scrolls"`
	MaxSearchScrolls   int `toml:"max_search_scrolls"`
	StallThreshold     int `toml:"stall_threshold"`
}

type FiltersConfig struct {
	AdKeywords      []string `toml:"ad_keywords"`
	NameBioKeywords []string `toml:"name_bio_keywords"`
	PostKeywords    []string `toml:"post_keywords"`
}

type ScrapingConfig struct {
	Headless           bool `toml:"headless"`
	StopAtForeignReply bool `toml:"stop_at_foreign_reply"`
	PageTimeoutSeconds int  `toml:"page_timeout_seconds"`
}

type OCRConfig struct {
	Enabled     bool     `toml:"enabled"`
	Languages   []string `toml:"languages"`
	Concurrency int      `toml:"concurrency"`
}

type RefinerConfig struct {
	Enabled bool   `toml:"enabled"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

type ScheduleConfig struct {
	Cron        string `toml:"cron"`
	Timezone    string `toml:"timezone"`
	MetricsAddr string `toml:"metrics_addr"`
}

type EmailConfig struct {
	Enabled  bool   `toml:"enabled"`
	Provider string `toml:"provider"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPass string `toml:"smtp_pass"`
	FromAddr string `toml:"from_address"`
	ToAddr   string `toml:"to_address"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version:  1,
		LogLevel: "info",
		Target: TargetConfig{
			Mode: ModeTargetOnly,
		},
		Limits: LimitsConfig{
			MaxUnitsToRegister: 10,
			URLBufferFactor:    3,
			MaxScrolls:         20,
			MaxSearchScrolls:   10,
			StallThreshold:     3,
		},
		Filters: FiltersConfig{
			NameBioKeywords: []string{},
			PostKeywords:    []string{},
		},
		Scraping: ScrapingConfig{
			Headless:           true,
			PageTimeoutSeconds: 15,
		},
		OCR: OCRConfig{
			Enabled:     true,
			Languages:   []string{"jpn"},
			Concurrency: 4,
		},
		Refiner: RefinerConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Schedule: ScheduleConfig{
			Cron:        "0 */6 * * *",
			MetricsAddr: "127.0.0.1:9464",
		},
		Email: EmailConfig{
			Provider: "smtp",
			SMTPPort: 587,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the directory for the database and step outputs
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// Load reads the config file at the default path.
// A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path on top of the defaults, then applies
// secrets from the environment. A .env file next to the config, or in the
// working directory, is loaded first.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	// godotenv never overrides variables that are already set
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	_ = godotenv.Load()

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAnthropicKey); v != "" {
		c.Refiner.APIKey = v
	}
	if v := os.Getenv(EnvSMTPPass); v != "" {
		c.Email.SMTPPass = v
	}
}

// Validate checks the config for values a run cannot start with.
func (c *Config) Validate() error {
	var problems []string

	switch c.Target.Mode {
	case ModeTargetOnly:
		if strings.TrimSpace(c.Target.Author) == "" {
			problems = append(problems, "target.author is required for target_only")
		}
	case ModeSearchFiltered, ModeSearchAll:
		if len(c.Filters.NameBioKeywords) == 0 {
			problems = append(problems, "filters.name_bio_keywords is required for "+c.Target.Mode)
		}
	case ModeKeywordTrend:
		if len(c.Filters.PostKeywords) == 0 {
			problems = append(problems, "filters.post_keywords is required for keyword_trend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown target.mode %q", c.Target.Mode))
	}

	if c.Limits.URLBufferFactor < 1 {
		problems = append(problems, "limits.url_buffer_factor must be at least 1")
	}
	if c.Limits.StallThreshold < 1 {
		problems = append(problems, "limits.stall_threshold must be at least 1")
	}
	if c.OCR.Enabled && c.OCR.Concurrency < 1 {
		problems = append(problems, "ocr.concurrency must be at least 1")
	}
	if c.Refiner.Enabled && c.Refiner.APIKey == "" {
		problems = append(problems, "refiner.api_key (or "+EnvAnthropicKey+") is required when the refiner is enabled")
	}
	if c.Email.Enabled && (c.Email.SMTPHost == "" || c.Email.ToAddr == "") {
		problems = append(problems, "email.smtp_host and email.to_address are required when email is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// AdKeywords returns the configured ad keywords, or fallback when none are set.
func (c *Config) AdKeywords(fallback []string) []string {
	if len(c.Filters.AdKeywords) > 0 {
		return c.Filters.AdKeywords
	}
	return fallback
}

// Save writes config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
