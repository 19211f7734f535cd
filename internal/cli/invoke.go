package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/state"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	ID      string
	Body    string
	Headers []string
}

// InvokeResult is what an invoke changed.
type InvokeResult struct {
	FlowToken string         `json:"flow_token"`
	Store     state.Status   `json:"store"`
	Refreshed []state.Status `json:"refreshed"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <store>",
		Short: "Execute a mutation and show the stores it refreshed",
		Long: `Execute a store once, wait for every invalidation refresh it caused,
and print the refreshed stores.

The flow token in the output identifies the run in the journal:
  fintrack trace --flow <token>

Examples:
  fintrack invoke CreateAccount --body '{"name":"Cash","type":"Cash","currency":"SEK"}'
  fintrack invoke DeleteTransaction --id 42
  fintrack invoke UpdateCategory --id 3 --body '{"name":"Rent"}' --header "X-Request-Source: cli"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "resource ID appended to the path")
	cmd.Flags().StringVar(&opts.Body, "body", "", "request body as JSON")
	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, `extra header "Name: value" (repeatable)`)
	return cmd
}

func runInvoke(ctx context.Context, opts *InvokeOptions, name string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)

	var body any
	if opts.Body != "" {
		if !json.Valid([]byte(opts.Body)) {
			f.Error(ErrCodeArguments, "--body is not valid JSON", nil)
			return NewExitError(ExitCommandError, "invalid --body JSON")
		}
		body = json.RawMessage(opts.Body)
	}
	headers, err := parseHeaders(opts.Headers)
	if err != nil {
		f.Error(ErrCodeArguments, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --header", err)
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

	flow := bus.UUIDv7Generator{}.Generate()
	ctx = bus.WithFlow(ctx, flow)
	st := h.Execute(ctx, state.Params{ID: opts.ID, Body: body, Headers: headers})
	s.registry.Wait()

	result := InvokeResult{
		FlowToken: flow,
		Store:     st,
		Refreshed: []state.Status{},
	}
	if st.Success {
		result.Refreshed = dependents(s, name)
	}

	if st.Error {
		return reportStatus(f, st)
	}
	if f.JSON() {
		return f.Success(result)
	}

	fmt.Fprintf(f.Writer, "flow %s\n", flow)
	f.WriteStatus(st)
	if len(result.Refreshed) == 0 {
		return nil
	}
	fmt.Fprintln(f.Writer, "\nRefreshed:")
	for _, dep := range result.Refreshed {
		fmt.Fprintf(f.Writer, "  %-26s %s\n", dep.Name, statusWord(dep))
		if dep.Error {
			fmt.Fprintf(f.Writer, "    %s\n", errorLine(dep))
		}
	}
	return nil
}

// dependents returns the current status of every store subscribed to a
// topic name publishes, in graph order.
func dependents(s *session, name string) []state.Status {
	seen := make(map[string]bool)
	var out []state.Status
	for _, e := range s.registry.Graph() {
		if e.Source != name || seen[e.Subscriber] {
			continue
		}
		seen[e.Subscriber] = true
		if h, err := s.registry.Lookup(e.Subscriber); err == nil {
			out = append(out, h.Status())
		}
	}
	if out == nil {
		return []state.Status{}
	}
	return out
}
