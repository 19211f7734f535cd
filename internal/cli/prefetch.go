package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fintrack/internal/state"
)

// PrefetchResult lists the state of every prefetched store.
type PrefetchResult struct {
	Stores []state.Status `json:"stores"`
	Failed int            `json:"failed"`
}

// NewPrefetchCommand creates the prefetch command.
func NewPrefetchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prefetch",
		Short: "Warm every read store that needs no ID",
		Long: `Execute every read store that needs no ID concurrently, the way the
application warms its screens on start. Period-scoped reads use the
configured budget period.

Exits 1 when any store failed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrefetch(cmd.Context(), rootOpts, cmd)
		},
	}
}

func runPrefetch(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)

	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	plan := s.registry.DefaultPlan(s.cfg.Period)
	prefetchErr := s.registry.Prefetch(ctx, plan)

	names := make([]string, 0, len(plan))
	for name := range plan {
		names = append(names, name)
	}
	slices.Sort(names)

	result := PrefetchResult{Stores: make([]state.Status, 0, len(names))}
	for _, name := range names {
		h, err := s.registry.Lookup(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "unknown store", err)
		}
		st := h.Status()
		if st.Error {
			result.Failed++
		}
		result.Stores = append(result.Stores, st)
	}

	if f.JSON() {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		for _, st := range result.Stores {
			mark := "✓"
			if st.Error {
				mark = "✗"
			}
			fmt.Fprintf(f.Writer, "%s %-30s %s\n", mark, st.Name, strings.TrimSpace(prefetchDetail(st)))
		}
		fmt.Fprintf(f.Writer, "\n%d stores, %d failed\n", len(result.Stores), result.Failed)
	}

	if prefetchErr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d store(s) failed", result.Failed), prefetchErr)
	}
	return nil
}

func prefetchDetail(st state.Status) string {
	if st.Error {
		return errorLine(st)
	}
	return statusWord(st)
}
