// Package config loads fintrack settings.
//
// Layers, lowest precedence first: built-in defaults, a YAML file, a .env
// file, process environment, command-line flags. Flags are applied by the
// CLI after Load returns.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/fintrack/internal/model"
	"github.com/roach88/fintrack/internal/transport"
)

// Environment variables.
const (
	EnvBaseURL    = "FINTRACK_BASE_URL"
	EnvAPIHost    = "API_BASE_URL" // host only; "/api/v1" is appended
	EnvToken      = "FINTRACK_TOKEN"
	EnvTimeout    = "FINTRACK_TIMEOUT"
	EnvJournal    = "FINTRACK_JOURNAL"
	EnvLogLevel   = "FINTRACK_LOG_LEVEL"
	EnvLogFormat  = "FINTRACK_LOG_FORMAT"
	EnvListen     = "FINTRACK_LISTEN"
	EnvStaleGuard = "FINTRACK_STALE_GUARD"
)

// APIPath is appended to API_BASE_URL.
const APIPath = "/api/v1"

// DefaultListen is the serve command's address.
const DefaultListen = "127.0.0.1:8787"

// Config is the complete fintrack configuration.
type Config struct {
	API        APIConfig    `yaml:"api"`
	Period     model.Period `yaml:"period"`
	Journal    string       `yaml:"journal"` // SQLite path; empty disables journaling
	Listen     string       `yaml:"listen"`
	StaleGuard bool         `yaml:"stale_guard"`
	MaxSteps   int          `yaml:"max_steps"` // 0 keeps the bus default
	Log        LogConfig    `yaml:"log"`
}

// APIConfig configures the HTTP transport.
type APIConfig struct {
	BaseURL string            `yaml:"base_url"`
	Token   string            `yaml:"token"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: transport.DefaultBaseURL,
			Timeout: transport.DefaultTimeout,
		},
		Period: model.DefaultPeriod(),
		Listen: DefaultListen,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a config from defaults, the YAML file at path and the
// environment. An empty path skips the file; a named file that does not
// exist is an error. dotenv names an optional .env file; a missing one is
// ignored.
func Load(path, dotenv string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	fileEnv := map[string]string{}
	if dotenv != "" {
		vars, err := godotenv.Read(dotenv)
		switch {
		case err == nil:
			fileEnv = vars
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", dotenv, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v := os.Getenv(key); v != "" {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from environment variables. Empty values are
// ignored.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	if host := get(EnvAPIHost); host != "" {
		c.API.BaseURL = strings.TrimSuffix(host, "/") + APIPath
	}
	if u := get(EnvBaseURL); u != "" {
		c.API.BaseURL = u
	}
	if token := get(EnvToken); token != "" {
		c.API.Token = token
	}
	if v := get(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.API.Timeout = d
	}
	if path := get(EnvJournal); path != "" {
		c.Journal = path
	}
	if level := get(EnvLogLevel); level != "" {
		c.Log.Level = level
	}
	if format := get(EnvLogFormat); format != "" {
		c.Log.Format = format
	}
	if addr := get(EnvListen); addr != "" {
		c.Listen = addr
	}
	if v := get(EnvStaleGuard); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStaleGuard, err)
		}
		c.StaleGuard = b
	}
	return nil
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q must be an absolute http(s) URL", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout))
	}
	if err := c.Period.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("period: %w", err))
	}
	if c.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Transport builds the HTTP transport options for the API section.
func (c *Config) Transport(logger *slog.Logger) []transport.HTTPOption {
	opts := []transport.HTTPOption{
		transport.WithBaseURL(c.API.BaseURL),
		transport.WithTimeout(c.API.Timeout),
		transport.WithToken(c.API.Token),
		transport.WithLogger(logger),
	}
	if len(c.API.Headers) > 0 {
		opts = append(opts, transport.WithHeaders(c.API.Headers))
	}
	return opts
}

// NewLogger builds a slog logger writing to w. verbose forces debug level.
func (c *Config) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: must be debug, info, warn or error", s)
	}
	return level, nil
}
