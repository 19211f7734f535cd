package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool               `json:"valid"`
	Version   string             `json:"version,omitempty"`
	Endpoints int                `json:"endpoints"`
	Reads     int                `json:"reads"`
	Topics    []ir.Topic         `json:"topics"`
	Edges     int                `json:"edges"`
	Cycles    []bus.CycleWarning `json:"cycles,omitempty"`
	Errors    []string           `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [catalog-dir]",
		Short: "Validate an endpoint catalog",
		Long: `Compile a CUE endpoint catalog against the schema and check its
invalidation graph for cycles. Without an argument the built-in catalog
is checked.

Exit codes:
  0 - catalog is valid
  1 - schema errors or cycles
  2 - directory not found`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if dir != "" {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			f.Error(ErrCodeCatalog, fmt.Sprintf("catalog directory not found: %s", dir), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("catalog directory not found: %s", dir))
		}
	}

	c, err := loadCatalog(dir)
	if err != nil {
		result := ValidationResult{Valid: false, Topics: []ir.Topic{}, Errors: splitErrors(err)}
		return outputValidation(f, result)
	}
	f.VerboseLog("compiled %d endpoints", len(c.Endpoints))

	edges := c.Edges()
	result := ValidationResult{
		Valid:     true,
		Version:   c.Version,
		Endpoints: len(c.Endpoints),
		Reads:     len(c.Reads()),
		Topics:    c.Topics(),
		Edges:     len(edges),
		Cycles:    bus.AnalyzeCycles(edges),
	}
	if result.Topics == nil {
		result.Topics = []ir.Topic{}
	}
	for _, w := range result.Cycles {
		result.Valid = false
		result.Errors = append(result.Errors, w.Message)
	}
	return outputValidation(f, result)
}

// splitErrors unpacks a joined error into one message per error.
func splitErrors(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}

func outputValidation(f *OutputFormatter, result ValidationResult) error {
	if f.JSON() {
		if result.Valid {
			return f.Success(result)
		}
		f.Error(ErrCodeCatalog, fmt.Sprintf("%d validation error(s)", len(result.Errors)), result)
		return NewExitError(ExitFailure, "catalog is invalid")
	}

	if result.Valid {
		fmt.Fprintf(f.Writer, "✓ catalog valid: %d endpoints (%d reads), %d topics, %d edges\n",
			result.Endpoints, result.Reads, len(result.Topics), result.Edges)
		return nil
	}

	fmt.Fprintln(f.Writer, "✗ catalog invalid:")
	for _, msg := range result.Errors {
		fmt.Fprintf(f.Writer, "  - %s\n", msg)
	}
	return NewExitError(ExitFailure, "catalog is invalid")
}
