package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/fintrack/internal/state"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	ID    string
	Query []string
	Force bool
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <store>",
		Short: "Execute a read store and print its state",
		Long: `Execute one store and print the resulting state.

Period-scoped reads (GetBudgetSummary, GetTransactionsByPeriod) use the
configured budget period unless --query is given.

Examples:
  fintrack get GetAccounts
  fintrack get GetTransactionByID --id 42
  fintrack get GetBudgetSummary --query start_day=1 --query end_day=28
  fintrack get GetCategories --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "resource ID appended to the path")
	cmd.Flags().StringArrayVarP(&opts.Query, "query", "q", nil, "query parameter key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "bypass the cache")
	return cmd
}

func runGet(ctx context.Context, opts *GetOptions, name string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)

	query, err := parseQuery(opts.Query)
	if err != nil {
		f.Error(ErrCodeArguments, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --query", err)
	}

	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := s.registry.Lookup(name)
	if err != nil {
		f.Error(ErrCodeUnknown, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown store", err)
	}

	params := state.Params{ID: opts.ID, Query: query, Force: opts.Force}
	if query == nil {
		if planned, ok := s.registry.DefaultPlan(s.cfg.Period)[name]; ok {
			params.Query = planned.Query
		}
	}

	st := h.Execute(ctx, params)
	return reportStatus(f, st)
}

// reportStatus prints st and turns a failed store into ExitFailure.
func reportStatus(f *OutputFormatter, st state.Status) error {
	if st.Error {
		f.Error(ErrCodeExecute, st.Name+": "+errorLine(st), st)
		return WrapExitError(ExitFailure, st.Name+" failed", st.ErrorData)
	}
	if f.JSON() {
		return f.Success(st)
	}
	f.WriteStatus(st)
	return nil
}
