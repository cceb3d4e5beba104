package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultSceneEndpoint = "http://vps72250.hyperhost.name"
	DefaultUserAgent     = "Manuscripta/1.0"
)

// Config holds the fully processed player configuration.
// Environment variables override values read from the JSON file.
type Config struct {
	SceneEndpoint  string        `env:"MANUSCRIPTA_SCENE_ENDPOINT"`
	UserAgent      string        `env:"MANUSCRIPTA_USER_AGENT"`
	Style          string        `env:"MANUSCRIPTA_STYLE"`
	ProxyURL       string        `env:"MANUSCRIPTA_PROXY_URL"`
	RequestTimeout time.Duration `env:"MANUSCRIPTA_REQUEST_TIMEOUT"`

	TickInterval    time.Duration `env:"MANUSCRIPTA_TICK_INTERVAL"`
	FrameParagraphs int           `env:"MANUSCRIPTA_FRAME_PARAGRAPHS"`

	CacheCapacity       int    `env:"MANUSCRIPTA_CACHE_CAPACITY"`
	TempDir             string `env:"MANUSCRIPTA_TEMP_DIR"`
	MaxInFlight         int    `env:"MANUSCRIPTA_MAX_IN_FLIGHT"`
	RetryFailedScenes   bool   `env:"MANUSCRIPTA_RETRY_FAILED_SCENES"`
	ReportImageFailures bool   `env:"MANUSCRIPTA_REPORT_IMAGE_FAILURES"`

	LogLevel     string `env:"MANUSCRIPTA_LOG_LEVEL"`
	LogFile      string `env:"MANUSCRIPTA_LOG_FILE"`
	ListenAddr   string `env:"MANUSCRIPTA_LISTEN_ADDR"`
	OTELEndpoint string `env:"MANUSCRIPTA_OTEL_ENDPOINT"`
}

// rawConfig is the intermediate structure that maps directly to the JSON file.
// Durations are written as Go duration strings ("20ms", "30s").
type rawConfig struct {
	SceneEndpoint       string `json:"SceneEndpoint"`
	UserAgent           string `json:"UserAgent"`
	Style               string `json:"Style"`
	ProxyURL            string `json:"ProxyURL"`
	RequestTimeout      string `json:"RequestTimeout"`
	TickInterval        string `json:"TickInterval"`
	FrameParagraphs     int    `json:"FrameParagraphs"`
	CacheCapacity       int    `json:"CacheCapacity"`
	TempDir             string `json:"TempDir"`
	MaxInFlight         int    `json:"MaxInFlight"`
	RetryFailedScenes   bool   `json:"RetryFailedScenes"`
	ReportImageFailures bool   `json:"ReportImageFailures"`
	LogLevel            string `json:"LogLevel"`
	LogFile             string `json:"LogFile"`
	ListenAddr          string `json:"ListenAddr"`
	OTELEndpoint        string `json:"OTELEndpoint"`
}

// Default returns the configuration used when neither file nor environment set a value.
func Default() Config {
	return Config{
		SceneEndpoint:   DefaultSceneEndpoint,
		UserAgent:       DefaultUserAgent,
		RequestTimeout:  60 * time.Second,
		TickInterval:    20 * time.Millisecond,
		FrameParagraphs: 1,
		LogLevel:        "info",
		ListenAddr:      "127.0.0.1:8080",
	}
}

// LoadConfig reads the optional JSON file at path, applies environment overrides and
// validates the result. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
		}
		var raw rawConfig
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config JSON: %w", err)
		}
		if err := raw.apply(&cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// apply copies every non-zero raw field over the defaults.
func (r rawConfig) apply(cfg *Config) error {
	setString(&cfg.SceneEndpoint, r.SceneEndpoint)
	setString(&cfg.UserAgent, r.UserAgent)
	setString(&cfg.Style, r.Style)
	setString(&cfg.ProxyURL, r.ProxyURL)
	setString(&cfg.TempDir, r.TempDir)
	setString(&cfg.LogLevel, r.LogLevel)
	setString(&cfg.LogFile, r.LogFile)
	setString(&cfg.ListenAddr, r.ListenAddr)
	setString(&cfg.OTELEndpoint, r.OTELEndpoint)

	if err := setDuration(&cfg.RequestTimeout, "RequestTimeout", r.RequestTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.TickInterval, "TickInterval", r.TickInterval); err != nil {
		return err
	}

	if r.FrameParagraphs != 0 {
		cfg.FrameParagraphs = r.FrameParagraphs
	}
	if r.CacheCapacity != 0 {
		cfg.CacheCapacity = r.CacheCapacity
	}
	if r.MaxInFlight != 0 {
		cfg.MaxInFlight = r.MaxInFlight
	}
	cfg.RetryFailedScenes = cfg.RetryFailedScenes || r.RetryFailedScenes
	cfg.ReportImageFailures = cfg.ReportImageFailures || r.ReportImageFailures
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	*dst = d
	return nil
}

// Validate checks the configuration for values the player cannot run with.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.SceneEndpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid scene endpoint %q", c.SceneEndpoint))
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid proxy url %q: %w", c.ProxyURL, err))
		}
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be positive, got %s", c.TickInterval))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request timeout must not be negative, got %s", c.RequestTimeout))
	}
	if c.FrameParagraphs < 1 {
		errs = append(errs, fmt.Errorf("frame paragraphs must be at least 1, got %d", c.FrameParagraphs))
	}
	if c.CacheCapacity < 0 {
		errs = append(errs, fmt.Errorf("cache capacity must not be negative, got %d", c.CacheCapacity))
	}
	if c.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("max in-flight must not be negative, got %d", c.MaxInFlight))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
