package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/fintrack/internal/config"
	"github.com/roach88/fintrack/internal/journal"
	"github.com/roach88/fintrack/internal/ledger"
	"github.com/roach88/fintrack/internal/transport"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	EnvFile    string
	BaseURL    string // overrides the configured base URL
	Token      string // overrides the configured token

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the fintrack command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fintrack",
		Short: "fintrack - request-state client for the finance API",
		Long: `Drive the finance API through cached, cross-invalidating request stores.

Reads are cached per store and skipped while data is held; mutations
force-refresh every store that depends on them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logging")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	flags.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file; missing files are ignored")
	flags.StringVar(&opts.BaseURL, "base-url", "", "API base URL, e.g. http://localhost:8080/api/v1")
	flags.StringVar(&opts.Token, "token", "", "bearer token")

	cmd.AddCommand(
		NewGetCommand(opts),
		NewInvokeCommand(opts),
		NewPrefetchCommand(opts),
		NewGraphCommand(opts),
		NewValidateCommand(opts),
		NewTraceCommand(opts),
		NewServeCommand(opts),
		NewTestCommand(opts),
	)
	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// Config loads and validates the configuration once. Flags override the
// file and the environment.
func (o *RootOptions) Config() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	cfg, err := config.Load(o.ConfigPath, o.EnvFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.BaseURL != "" {
		cfg.API.BaseURL = o.BaseURL
	}
	if o.Token != "" {
		cfg.API.Token = o.Token
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	o.cfg = cfg
	return cfg, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger writes to stderr. Without --verbose only warnings and errors are
// shown, so command output stays readable.
func (o *RootOptions) logger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	if !o.Verbose && cfg.Log.Level == "info" {
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return cfg.NewLogger(cmd.ErrOrStderr(), o.Verbose)
}

// session is a registry built from the configuration, plus the journal it
// records into when one is configured.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *ledger.Registry
	journal  *journal.Journal
}

func (s *session) Close() {
	s.registry.Wait()
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warn("failed to close journal", "error", err)
		}
	}
}

// open builds a session. extra options are applied last.
func (o *RootOptions) open(cmd *cobra.Command, extra ...ledger.Option) (*session, error) {
	cfg, err := o.Config()
	if err != nil {
		return nil, err
	}
	logger := o.logger(cmd, cfg)

	opts := []ledger.Option{ledger.WithLogger(logger)}
	if cfg.StaleGuard {
		opts = append(opts, ledger.WithStaleGuard())
	}
	if cfg.MaxSteps > 0 {
		opts = append(opts, ledger.WithMaxSteps(cfg.MaxSteps))
	}

	var j *journal.Journal
	if cfg.Journal != "" {
		j, err = journal.Open(cfg.Journal, journal.WithLogger(logger))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		opts = append(opts, ledger.WithObserver(j), ledger.WithListener(j))
	}
	opts = append(opts, extra...)

	tr := transport.NewHTTP(cfg.Transport(logger)...)
	registry, err := ledger.New(tr, opts...)
	if err != nil {
		if j != nil {
			j.Close()
		}
		return nil, WrapExitError(ExitCommandError, "failed to build registry", err)
	}
	return &session{cfg: cfg, logger: logger, registry: registry, journal: j}, nil
}
