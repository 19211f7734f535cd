package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fintrack/internal/harness"
)

type testOptions struct {
	*RootOptions
	update bool
	filter string
}

// ScenarioOutcome is the verdict for one scenario file.
type ScenarioOutcome struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestSummary is the result of a test run.
type TestSummary struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

func (s *TestSummary) record(o ScenarioOutcome) {
	s.Scenarios = append(s.Scenarios, o)
	if o.Pass {
		s.Passed++
	} else {
		s.Failed++
	}
}

func (s *TestSummary) err() error {
	if s.Failed == 0 {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", s.Failed))
}

// NewTestCommand returns the command that replays conformance scenarios.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &testOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run YAML scenarios against a registry wired to a scripted transport.

Each scenario's expectations and assertions are checked, and its step
traces are compared with <scenarios-dir>/golden/<name>.golden when that
file exists.

Exit codes:
  0 - every scenario passed
  1 - a scenario failed its assertions or golden trace
  2 - the directory or filter is unusable

Examples:
  fintrack test ./scenarios
  fintrack test ./scenarios --filter "create_*"
  fintrack test ./scenarios --update
  fintrack test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.update, "update", false, "rewrite golden traces from this run")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "only run scenarios whose name matches this glob")
	return cmd
}

func runTests(opts *testOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, "scenarios directory not found: "+dir)
	}

	files, err := scenarioFiles(dir, opts.filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	summary := TestSummary{Scenarios: []ScenarioOutcome{}, Total: len(files)}
	if len(files) == 0 && !f.JSON() {
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	progress := f.Writer
	if f.JSON() {
		progress = io.Discard
	}
	for _, file := range files {
		o := checkScenario(file, opts.update)
		printOutcome(progress, o, opts.update)
		summary.record(o)
	}

	failed := summary.err()
	if f.JSON() {
		if failed != nil {
			f.Error("E_TEST_FAILED", failed.Error(), summary)
			return failed
		}
		return f.Success(summary)
	}

	fmt.Fprintf(f.Writer, "\nTest Summary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
	if failed != nil {
		return failed
	}
	fmt.Fprintln(f.Writer, "✓ All scenarios passed")
	return nil
}

// scenarioFiles lists the YAML scenarios under dir in lexical order. The
// golden/ directory is never searched.
func scenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && path != dir && d.Name() == "golden":
			return filepath.SkipDir
		case d.IsDir():
			return nil
		}
		name, ok := scenarioName(path)
		if !ok {
			return nil
		}
		if filter != "" {
			if matched, _ := filepath.Match(filter, name); !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// scenarioName strips the YAML extension from a scenario file's base name.
func scenarioName(path string) (string, bool) {
	base := filepath.Base(path)
	for _, ext := range []string{".yaml", ".yml"} {
		if name, ok := strings.CutSuffix(base, ext); ok {
			return name, true
		}
	}
	return "", false
}

// checkScenario runs one scenario and compares its trace with the golden
// file, or rewrites the golden file when update is set.
func checkScenario(file string, update bool) ScenarioOutcome {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioOutcome{Name: filepath.Base(file), Errors: []string{"failed to load scenario: " + err.Error()}}
	}
	failed := func(format string, args ...any) ScenarioOutcome {
		return ScenarioOutcome{Name: scenario.Name, Errors: []string{fmt.Sprintf(format, args...)}}
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return failed("execution failed: %v", err)
	}
	trace, err := harness.NewSnapshot(scenario, result).Golden()
	if err != nil {
		return failed("failed to render trace: %v", err)
	}

	path := goldenFilePath(file)
	if update {
		if err := writeGolden(path, trace); err != nil {
			return failed("failed to update golden file: %v", err)
		}
	} else if want, err := os.ReadFile(path); err == nil {
		if !bytes.Equal(want, trace) {
			result.AddError("trace does not match golden file (run with --update to regenerate)")
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return failed("failed to read golden file: %v", err)
	}

	return ScenarioOutcome{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
}

func printOutcome(w io.Writer, o ScenarioOutcome, update bool) {
	switch {
	case !o.Pass:
		fmt.Fprintf(w, "✗ %s\n", o.Name)
		for _, msg := range o.Errors {
			fmt.Fprintln(w, "  "+msg)
		}
	case update:
		fmt.Fprintf(w, "✓ %s (golden updated)\n", o.Name)
	default:
		fmt.Fprintf(w, "✓ %s\n", o.Name)
	}
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(scenarioFile string) string {
	name, _ := scenarioName(scenarioFile)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(scenarioFile), filepath.Ext(scenarioFile))
	}
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
