package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/husk/internal/config"
	"github.com/roach88/husk/internal/engine"
	"github.com/roach88/husk/internal/harness"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Metrics bool
}

// ScenarioReport is the outcome of one scenario file.
type ScenarioReport struct {
	Path     string               `json:"path"`
	Name     string               `json:"name"`
	Pass     bool                 `json:"pass"`
	Steps    int                  `json:"steps"`
	Errors   []string             `json:"errors,omitempty"`
	Trace    []harness.TraceEvent `json:"trace,omitempty"`
	Live     int                  `json:"live"`
	Outcomes map[string]int       `json:"outcomes"`
}

// SimulationReport summarizes a simulate run.
type SimulationReport struct {
	Scenarios []ScenarioReport `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml|dir>...",
		Short: "Run reconciliation scenarios against in-memory fakes",
		Long: `Run scenario files against an in-memory chat transport and checkpoint
store, checking step expectations and assertions.

Directories are expanded to the .yaml and .yml files they contain.
Engine timeout, resolver lookback and the sticky switch come from the
config; each scenario supplies its own board section.

Exit codes:
  0 - All scenarios passed
  1 - At least one scenario failed
  2 - A scenario could not be loaded or run`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print reconciliation metrics in Prometheus text format")

	return cmd
}

func runSimulate(cmd *cobra.Command, opts *SimulateOptions, args []string) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	paths, err := expandScenarioPaths(args)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, "scenario path not found", err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeInvalidScenario, "failed to list scenarios", err)
	}
	if len(paths) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidScenario, "no scenario files found", nil)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, "failed to load config", err)
	}
	runOpts := []harness.Option{harness.WithConfig(cfg)}
	reg := prometheus.NewRegistry()
	if opts.Metrics {
		metrics, err := engine.NewMetrics(reg, nil)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to register metrics", err)
		}
		runOpts = append(runOpts, harness.WithMetrics(metrics))
	}

	report := SimulationReport{Scenarios: make([]ScenarioReport, 0, len(paths))}
	for _, path := range paths {
		formatter.VerboseLog("Loading scenario: %s", path)
		s, err := harness.LoadScenario(path)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidScenario, "failed to load "+path, err)
		}

		result, err := harness.RunContext(cmd.Context(), s, runOpts...)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return formatter.Fail(ExitCommandError, ErrCodeGeneric, "simulation canceled", err)
			}
			return formatter.Fail(ExitCommandError, ErrCodeInvalidScenario, "failed to run "+s.Name, err)
		}

		sr := newScenarioReport(path, s, result, opts.Verbose || formatter.JSON())
		report.Scenarios = append(report.Scenarios, sr)
		if sr.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		writeSimulationText(formatter, report)
	}

	if opts.Metrics {
		if err := writeMetrics(cmd, reg); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to write metrics", err)
		}
	}

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d of %d scenarios failed",
			ErrCodeScenarioFailed, report.Failed, len(report.Scenarios)))
	}
	return nil
}

func newScenarioReport(path string, s *harness.Scenario, result *harness.Result, withTrace bool) ScenarioReport {
	sr := ScenarioReport{
		Path:     path,
		Name:     s.Name,
		Pass:     result.Pass,
		Steps:    len(s.Steps),
		Errors:   result.Errors,
		Live:     len(result.Live),
		Outcomes: make(map[string]int),
	}
	for _, ev := range result.Trace {
		sr.Outcomes[ev.Outcome]++
	}
	if withTrace {
		sr.Trace = result.Trace
	}
	return sr
}

func writeSimulationText(f *OutputFormatter, report SimulationReport) {
	for _, sr := range report.Scenarios {
		mark := "✓"
		if !sr.Pass {
			mark = "✗"
		}
		fmt.Fprintf(f.Writer, "%s %s (%d steps, %d live)\n", mark, sr.Name, sr.Steps, sr.Live)
		for _, msg := range sr.Errors {
			fmt.Fprintf(f.Writer, "    %s\n", strings.ReplaceAll(msg, "\n", "\n    "))
		}
		for _, ev := range sr.Trace {
			line := fmt.Sprintf("    step %d %s: %s", ev.Step, ev.Do, ev.Outcome)
			if ev.Key != "" {
				line += " " + ev.Key
			}
			if ev.RepresentationID != "" {
				line += " -> " + ev.RepresentationID
			}
			if ev.Code != "" {
				line += " [" + ev.Code + "]"
			}
			fmt.Fprintln(f.Writer, line)
		}
	}
	fmt.Fprintf(f.Writer, "\n%d passed, %d failed\n", report.Passed, report.Failed)
}

// writeMetrics prints the gathered families to stderr so the report on
// stdout stays parseable.
func writeMetrics(cmd *cobra.Command, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(cmd.ErrOrStderr(), mf); err != nil {
			return err
		}
	}
	return nil
}

// expandScenarioPaths resolves files and directories to a sorted,
// de-duplicated list of scenario files.
func expandScenarioPaths(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".yaml", ".yml":
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}
	return paths, nil
}
