package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fintrack/internal/model"
	"github.com/roach88/fintrack/internal/transport"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// clearEnv blanks every variable Load reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvBaseURL, EnvAPIHost, EnvToken, EnvTimeout, EnvJournal, EnvLogLevel, EnvLogFormat, EnvListen, EnvStaleGuard} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, transport.DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, model.Period{StartDay: 25, EndDay: 24}, cfg.Period)
	assert.Empty(t, cfg.Journal)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "fintrack.yaml", `
api:
  base_url: https://budget.example.com/api/v1
  timeout: 3s
  headers:
    X-Client: cli
period:
  start_day: 1
  end_day: 31
journal: /var/lib/fintrack/journal.db
stale_guard: true
log:
  level: debug
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "https://budget.example.com/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, map[string]string{"X-Client": "cli"}, cfg.API.Headers)
	assert.Equal(t, model.Period{StartDay: 1, EndDay: 31}, cfg.Period)
	assert.Equal(t, "/var/lib/fintrack/journal.db", cfg.Journal)
	assert.True(t, cfg.StaleGuard)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "unset keys keep defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "api: [")
	_, err := Load(path, "")
	assert.ErrorContains(t, err, "parse config")
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "fintrack.yaml", "api:\n  token: from-yaml\njournal: yaml.db\n")
	dotenv := writeFile(t, ".env", "FINTRACK_TOKEN=from-dotenv\nFINTRACK_JOURNAL=dotenv.db\nFINTRACK_LISTEN=:9000\n")

	t.Setenv(EnvJournal, "env.db")

	cfg, err := Load(path, dotenv)
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.API.Token, ".env beats YAML")
	assert.Equal(t, "env.db", cfg.Journal, "process env beats .env")
	assert.Equal(t, ":9000", cfg.Listen)
}

func TestLoad_MissingDotenvIgnored(t *testing.T) {
	clearEnv(t)
	_, err := Load("", filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, c *Config)
	}{
		{
			name: "API_BASE_URL gets the api prefix",
			env:  map[string]string{EnvAPIHost: "http://finance.local:3000/"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "http://finance.local:3000/api/v1", c.API.BaseURL)
			},
		},
		{
			name: "FINTRACK_BASE_URL beats API_BASE_URL",
			env:  map[string]string{EnvAPIHost: "http://a", EnvBaseURL: "http://b/api/v2"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "http://b/api/v2", c.API.BaseURL)
			},
		},
		{
			name: "timeout and stale guard",
			env:  map[string]string{EnvTimeout: "250ms", EnvStaleGuard: "true"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 250*time.Millisecond, c.API.Timeout)
				assert.True(t, c.StaleGuard)
			},
		},
		{
			name: "blank values ignored",
			env:  map[string]string{EnvToken: "  "},
			check: func(t *testing.T, c *Config) {
				assert.Empty(t, c.API.Token)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.applyEnv(func(k string) (string, bool) {
				v, ok := tt.env[k]
				return v, ok
			})
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	for key, value := range map[string]string{EnvTimeout: "soon", EnvStaleGuard: "maybe"} {
		t.Run(key, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.applyEnv(func(k string) (string, bool) {
				if k == key {
					return value, true
				}
				return "", false
			})
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"relative url", func(c *Config) { c.API.BaseURL = "/api/v1" }, "api.base_url"},
		{"ftp url", func(c *Config) { c.API.BaseURL = "ftp://host/api" }, "api.base_url"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"bad period", func(c *Config) { c.Period.StartDay = 32 }, "period: start day 32"},
		{"negative steps", func(c *Config) { c.MaxSteps = -1 }, "max_steps"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Timeout = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.timeout")
	assert.Contains(t, err.Error(), "log.format")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Log.Format = "json"

	logger := cfg.NewLogger(&buf, false)
	logger.Debug("hidden")
	logger.Info("shown", "store", "GetAccounts")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"store":"GetAccounts"`)

	buf.Reset()
	cfg.NewLogger(&buf, true).Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}
