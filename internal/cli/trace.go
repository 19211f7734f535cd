package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/fintrack/internal/ir"
	"github.com/roach88/fintrack/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	FlowToken string
	Store     string // optional - filter to one store
	Limit     int
}

// TraceEvent is one entry of a flow's timeline.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"` // "execution" or "firing"

	// execution
	ID      string      `json:"id,omitempty"`
	Store   string      `json:"store,omitempty"`
	Method  ir.Method   `json:"method,omitempty"`
	Path    string      `json:"path,omitempty"`
	Query   ir.IRObject `json:"query,omitempty"`
	Forced  bool        `json:"forced,omitempty"`
	Outcome ir.Outcome  `json:"outcome,omitempty"` // empty while pending
	Status  int         `json:"status,omitempty"`
	Message string      `json:"message,omitempty"`

	// firing
	Source     string   `json:"source,omitempty"`
	Topic      ir.Topic `json:"topic,omitempty"`
	Subscriber string   `json:"subscriber,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	FlowToken string       `json:"flow_token"`
	Timeline  []TraceEvent `json:"timeline"`
	Stats     TraceStats   `json:"stats"`
}

// TraceStats summarizes a flow.
type TraceStats struct {
	Executions int `json:"executions"`
	Skipped    int `json:"skipped"`
	Failures   int `json:"failures"`
	Firings    int `json:"firings"`
	Pending    int `json:"pending"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled executions and invalidations",
		Long: `Show what a flow did: every execution with its outcome, and every
invalidation that refreshed a dependent store, in logical order.

Without --flow the most recent flows are listed. --db defaults to the
configured journal (FINTRACK_JOURNAL).

Examples:
  fintrack trace --db ./fintrack.db
  fintrack trace --db ./fintrack.db --flow 0190c7e2-...
  fintrack trace --flow 0190c7e2-... --store GetAccounts --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal")
	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "flow token to trace")
	cmd.Flags().StringVar(&opts.Store, "store", "", "only show executions of this store and firings into it")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of flows to list without --flow")
	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)

	path := opts.Database
	if path == "" {
		cfg, err := opts.Config()
		if err != nil {
			return err
		}
		path = cfg.Journal
	}
	if path == "" {
		f.Error(ErrCodeJournal, "no journal: pass --db or set FINTRACK_JOURNAL", nil)
		return NewExitError(ExitCommandError, "no journal configured")
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		f.Error(ErrCodeJournal, fmt.Sprintf("journal not found: %s", path), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path))
	}

	j, err := journal.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.FlowToken == "" {
		return listFlows(ctx, j, opts.Limit, f)
	}

	t, err := j.ReadFlow(ctx, opts.FlowToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read flow", err)
	}
	result := buildTrace(t, opts.Store)

	if f.JSON() {
		return f.Success(result)
	}
	if len(t.Executions) == 0 {
		fmt.Fprintf(f.Writer, "No executions found for flow: %s\n", opts.FlowToken)
		return nil
	}
	writeTrace(f.Writer, result, opts.Verbose)
	return nil
}

func listFlows(ctx context.Context, j *journal.Journal, limit int, f *OutputFormatter) error {
	flows, err := j.Flows(ctx, limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list flows", err)
	}
	if f.JSON() {
		return f.Success(flows)
	}
	if len(flows) == 0 {
		fmt.Fprintln(f.Writer, "No flows journaled.")
		return nil
	}
	for _, fl := range flows {
		fmt.Fprintf(f.Writer, "%s  %-24s %3d executions", fl.FlowToken, fl.Root, fl.Executions)
		if fl.Failures > 0 {
			fmt.Fprintf(f.Writer, ", %d failed", fl.Failures)
		}
		fmt.Fprintln(f.Writer)
	}
	return nil
}

// buildTrace merges executions and firings by sequence number. When store
// is set, only its executions and the firings that refreshed it are kept;
// stats always cover the whole flow.
func buildTrace(t journal.Trace, store string) TraceResult {
	result := TraceResult{FlowToken: t.FlowToken, Timeline: []TraceEvent{}}

	for _, ex := range t.Executions {
		ev := TraceEvent{
			Seq:    ex.Seq,
			Type:   "execution",
			ID:     ex.ID,
			Store:  ex.Store,
			Method: ex.Method,
			Path:   ex.Path,
			Query:  ex.Query,
			Forced: ex.Forced,
		}
		result.Stats.Executions++
		if s, ok := t.Outcome(ex.ID); ok {
			ev.Outcome = s.Outcome
			ev.Status = s.Status
			ev.Message = s.Message
			switch s.Outcome {
			case ir.OutcomeSkipped:
				result.Stats.Skipped++
			case ir.OutcomeError:
				result.Stats.Failures++
			}
		} else {
			result.Stats.Pending++
		}
		if store == "" || ex.Store == store {
			result.Timeline = append(result.Timeline, ev)
		}
	}

	for _, fr := range t.Firings {
		result.Stats.Firings++
		if store != "" && fr.Subscriber != store {
			continue
		}
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:        fr.Seq,
			Type:       "firing",
			ID:         fr.Cause.ExecutionID,
			Source:     fr.Cause.Source,
			Topic:      fr.Cause.Topic,
			Subscriber: fr.Subscriber,
		})
	}

	sort.SliceStable(result.Timeline, func(i, k int) bool {
		return result.Timeline[i].Seq < result.Timeline[k].Seq
	})
	return result
}

func writeTrace(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for flow: %s\n\n", result.FlowToken)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		writeTraceEvent(w, ev, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Executions: %d\n", result.Stats.Executions)
	fmt.Fprintf(w, "  Skipped:    %d\n", result.Stats.Skipped)
	fmt.Fprintf(w, "  Failures:   %d\n", result.Stats.Failures)
	fmt.Fprintf(w, "  Firings:    %d\n", result.Stats.Firings)
	if result.Stats.Pending > 0 {
		fmt.Fprintf(w, "  Pending:    %d\n", result.Stats.Pending)
	}
}

func writeTraceEvent(w io.Writer, ev TraceEvent, verbose bool) {
	if ev.Type == "firing" {
		fmt.Fprintf(w, "  [%d] %s -[%s]-> %s\n", ev.Seq, ev.Source, ev.Topic, ev.Subscriber)
		return
	}

	target := ev.Path
	if len(ev.Query) > 0 {
		if values, err := ev.Query.Encode(); err == nil {
			target += "?" + values.Encode()
		}
	}
	forced := ""
	if ev.Forced {
		forced = " (forced)"
	}
	fmt.Fprintf(w, "  [%d] %s %s %s%s -> %s\n", ev.Seq, ev.Store, ev.Method, target, forced, outcomeText(ev))
	if verbose {
		fmt.Fprintf(w, "       ID: %s\n", truncateID(ev.ID))
		if ev.Message != "" {
			fmt.Fprintf(w, "       Message: %s\n", ev.Message)
		}
	}
}

func outcomeText(ev TraceEvent) string {
	if ev.Outcome == "" {
		return "pending"
	}
	if ev.Status != 0 {
		return fmt.Sprintf("%s %d", ev.Outcome, ev.Status)
	}
	return string(ev.Outcome)
}

// truncateID shortens long IDs for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
