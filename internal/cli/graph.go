package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/catalog"
	"github.com/roach88/fintrack/internal/ir"
)

// GraphOptions holds flags for the graph command.
type GraphOptions struct {
	*RootOptions
	CatalogDir string
}

// GraphResult is the invalidation graph of a catalog.
type GraphResult struct {
	Edges  []ir.Edge          `json:"edges"`
	Cycles []bus.CycleWarning `json:"cycles"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the invalidation graph",
		Long: `Print which stores each mutation refreshes, grouped by publisher.

Examples:
  fintrack graph
  fintrack graph --catalog ./catalog --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CatalogDir, "catalog", "", "CUE catalog directory (default: built-in)")
	return cmd
}

func runGraph(opts *GraphOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	c, err := loadCatalog(opts.CatalogDir)
	if err != nil {
		f.Error(ErrCodeCatalog, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	result := GraphResult{
		Edges:  c.Edges(),
		Cycles: bus.AnalyzeCycles(c.Edges()),
	}
	if result.Edges == nil {
		result.Edges = []ir.Edge{}
	}

	if f.JSON() {
		return f.Success(result)
	}
	writeGraph(f.Writer, result)
	return nil
}

// writeGraph prints edges grouped by consecutive source:
//
//	CreateAccount
//	  accounts     -> GetAccounts
//	  budget       -> GetBudgetSummary
func writeGraph(w io.Writer, g GraphResult) {
	source := ""
	for _, e := range g.Edges {
		if e.Source != source {
			if source != "" {
				fmt.Fprintln(w)
			}
			source = e.Source
			fmt.Fprintln(w, source)
		}
		fmt.Fprintf(w, "  %-12s -> %s\n", e.Topic, e.Subscriber)
	}
	if source != "" {
		fmt.Fprintln(w)
	}
	for _, c := range g.Cycles {
		fmt.Fprintf(w, "cycle: %s\n", c.Message)
	}
	fmt.Fprintf(w, "%d edges, %d cycles\n", len(g.Edges), len(g.Cycles))
}

func loadCatalog(dir string) (*catalog.Catalog, error) {
	if dir == "" {
		return catalog.Default()
	}
	return catalog.LoadDir(dir)
}
