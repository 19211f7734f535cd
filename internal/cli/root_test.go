package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fintrack/internal/config"
)

// clearEnv blanks every variable the config reads. Empty values are ignored
// by config.Load, so the built-in defaults apply.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvBaseURL, config.EnvAPIHost, config.EnvToken, config.EnvTimeout,
		config.EnvJournal, config.EnvLogLevel, config.EnvLogFormat, config.EnvListen,
		config.EnvStaleGuard,
	} {
		t.Setenv(key, "")
	}
}

// execute runs the root command with args and returns stdout and stderr.
// The dotenv file is disabled.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--env-file="}, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestRootCommand_Commands(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "fintrack", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"get", "invoke", "prefetch", "graph", "validate", "trace", "serve", "test"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	flags := cmd.PersistentFlags()

	for _, name := range []string{"verbose", "format", "config", "env-file", "base-url", "token"} {
		assert.NotNil(t, flags.Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "text", flags.Lookup("format").DefValue)
	assert.Equal(t, ".env", flags.Lookup("env-file").DefValue)
	assert.Equal(t, "v", flags.Lookup("verbose").Shorthand)
	assert.Equal(t, "c", flags.Lookup("config").Shorthand)
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	clearEnv(t)

	_, _, err := execute(t, "--format", "xml", "graph")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootOptions_Config(t *testing.T) {
	clearEnv(t)

	opts := &RootOptions{
		Format:  "text",
		BaseURL: "http://finance.test/api/v1",
		Token:   "secret",
	}
	cfg, err := opts.Config()
	require.NoError(t, err)
	assert.Equal(t, "http://finance.test/api/v1", cfg.API.BaseURL)
	assert.Equal(t, "secret", cfg.API.Token)

	again, err := opts.Config()
	require.NoError(t, err)
	assert.Same(t, cfg, again)
}

func TestRootOptions_Config_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := (&RootOptions{}).Config()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().API.BaseURL, cfg.API.BaseURL)
	assert.Empty(t, cfg.API.Token)
}

func TestRootOptions_Config_Errors(t *testing.T) {
	clearEnv(t)

	t.Run("missing config file", func(t *testing.T) {
		opts := &RootOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}
		_, err := opts.Config()
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("invalid base url", func(t *testing.T) {
		opts := &RootOptions{BaseURL: "ftp://finance.test"}
		_, err := opts.Config()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}
