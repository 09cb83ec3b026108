package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/relayout/internal/compiler"
	"github.com/roach88/relayout/internal/ir"
	"github.com/roach88/relayout/internal/layout"
	"github.com/roach88/relayout/internal/pass"
	"github.com/roach88/relayout/internal/store"
)

// OptOptions holds flags for the opt command.
type OptOptions struct {
	*RootOptions
	Database       string
	Output         string
	MaxIterations  int
	NumWarps       int
	ThreadsPerWarp int
	NoHoist        bool

	// RunIDs overrides the run ID generator (for testing). Nil means
	// pass.UUIDv7Generator.
	RunIDs pass.RunIDGenerator
}

// OptResult is the JSON payload of the opt command.
type OptResult struct {
	RunID      string          `json:"run_id"`
	ModuleHash string          `json:"module_hash"`
	Iterations int             `json:"iterations"`
	Converged  bool            `json:"converged"`
	Before     int             `json:"conversions_before"`
	After      int             `json:"conversions_after"`
	Decisions  []pass.Decision `json:"decisions"`
	Stored     bool            `json:"stored"`
	IR         string          `json:"ir"`
}

// NewOptCommand creates the opt command.
func NewOptCommand(rootOpts *RootOptions) *cobra.Command {
	return NewOptCommandWith(&OptOptions{RootOptions: rootOpts})
}

// NewOptCommandWith creates the opt command around preset options; flags
// still overwrite the fields they bind.
func NewOptCommandWith(opts *OptOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opt <graph>",
		Short: "Eliminate layout conversions",
		Long: `Run the conversion-elimination pass on a graph and print the result.

Each iteration hoists conversions of loop-carried values out of for loops,
then rebuilds the producers of every remaining conversion in the converted
layout when that does not add conversions, then removes dead code. The pass
stops at a fixpoint or after --max-iterations.

With --db every decision is appended to a SQLite log that "relayout trace"
reads back. Sequence numbers continue across runs.

Examples:
  relayout opt ./kernel.cue
  relayout opt ./kernel.cue --db ./relayout.db -o kernel.opt.ir
  relayout opt ./kernel.cue --num-warps 8 --no-hoist --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpt(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "append decisions to this SQLite database")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the optimized IR to this file")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", pass.DefaultMaxIterations, "bound on fixpoint iterations")
	cmd.Flags().IntVar(&opts.NumWarps, "num-warps", 0, "override the graph's num_warps attribute")
	cmd.Flags().IntVar(&opts.ThreadsPerWarp, "threads-per-warp", 0, "override the graph's threads_per_warp attribute")
	cmd.Flags().BoolVar(&opts.NoHoist, "no-hoist", false, "skip the loop-hoisting phase")

	return cmd
}

func runOpt(opts *OptOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())

	if opts.MaxIterations <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--max-iterations must be positive, got %d", opts.MaxIterations))
	}

	g, err := LoadGraph(path)
	if err != nil {
		return loadErrorResponse(formatter, err)
	}
	m := g.Module
	applyHardware(m, opts.NumWarps, opts.ThreadsPerWarp)
	if errs := compiler.Validate(m); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = pass.UUIDv7Generator{}
	}
	runOpts := []pass.Option{
		pass.WithLogger(logger),
		pass.WithMaxIterations(opts.MaxIterations),
		pass.WithHoisting(!opts.NoHoist),
		pass.WithRunID(runIDs),
	}

	var st *store.Store
	if opts.Database != "" {
		logger.Debug("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		last, err := st.LastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read decision log", err)
		}
		runOpts = append(runOpts, pass.WithClock(pass.NewClockAt(last)))
	}

	report, err := pass.Run(m, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "optimization failed", err)
	}
	if errs := compiler.Validate(m); len(errs) > 0 {
		logger.Error("optimized graph is invalid", "errors", len(errs))
		return outputValidationErrors(formatter, errs)
	}

	if st != nil {
		if err := st.WriteReport(ctx, path, report, runOptions(m, opts)); err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to store run", err)
		}
		logger.Debug("run stored", "run_id", report.RunID, "decisions", len(report.Decisions))
	}

	printed := ir.Print(m)
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(printed), 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(OptResult{
			RunID:      report.RunID,
			ModuleHash: report.ModuleHash,
			Iterations: report.Iterations,
			Converged:  report.Converged,
			Before:     report.Before,
			After:      report.After,
			Decisions:  report.Decisions,
			Stored:     st != nil,
			IR:         printed,
		})
	}

	if opts.Output == "" {
		fmt.Fprint(formatter.Writer, printed)
	}
	status := "converged"
	if !report.Converged {
		status = "not converged"
	}
	fmt.Fprintf(formatter.GetErrWriter(), "✓ %d -> %d conversion(s), %d iteration(s), %s\n",
		report.Before, report.After, report.Iterations, status)
	return nil
}

// newLogger returns the text logger commands hand to library packages.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func applyHardware(m *ir.Module, numWarps, threadsPerWarp int) {
	if numWarps > 0 {
		m.Attrs["num_warps"] = numWarps
	}
	if threadsPerWarp > 0 {
		m.Attrs["threads_per_warp"] = threadsPerWarp
	}
}

// runOptions is the option record stored with a run. Hardware values are
// the effective ones, defaults included.
func runOptions(m *ir.Module, opts *OptOptions) map[string]any {
	hw := layout.HardwareFromModule(m)
	return map[string]any{
		"max_iterations":   opts.MaxIterations,
		"hoist":            !opts.NoHoist,
		"num_warps":        hw.NumWarps,
		"threads_per_warp": hw.ThreadsPerWarp,
	}
}
