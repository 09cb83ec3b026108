package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relayout/internal/pass"
	"github.com/roach88/relayout/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Module   string // module hash filter for run listings
	Phase    string
	Outcome  string
}

// RunSummary is one row of a run listing.
type RunSummary struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	ModuleHash string         `json:"module_hash"`
	Iterations int            `json:"iterations"`
	Converged  bool           `json:"converged"`
	Before     int            `json:"conversions_before"`
	After      int            `json:"conversions_after"`
	FirstSeq   int64          `json:"first_seq"`
	LastSeq    int64          `json:"last_seq"`
	Options    map[string]any `json:"options,omitempty"`
}

// TraceResult holds one run and its decisions.
type TraceResult struct {
	Run       RunSummary      `json:"run"`
	Decisions []pass.Decision `json:"decisions"`
	Stats     TraceStats      `json:"stats"`
}

// TraceStats counts decisions by outcome.
type TraceStats struct {
	Total        int `json:"total"`
	Applied      int `json:"applied"`
	Infeasible   int `json:"infeasible"`
	Unprofitable int `json:"unprofitable"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query the decision log",
		Long: `Read optimizer runs back from a decision log written by "relayout opt --db".

Without --run, lists the stored runs, oldest first. With --run, shows the
decisions of that run in sequence order: which conversion or loop parameter
was considered, the target layout, the estimated change in conversion count
and what the optimizer did with it.

Examples:
  relayout trace --db ./relayout.db
  relayout trace --db ./relayout.db --run 0190c2d3-...
  relayout trace --db ./relayout.db --run 0190c2d3-... --outcome applied
  relayout trace --db ./relayout.db --module 9f2c... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to show")
	cmd.Flags().StringVar(&opts.Module, "module", "", "list only runs of this module hash")
	cmd.Flags().StringVar(&opts.Phase, "phase", "", "filter decisions by phase (hoist|backward)")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "filter decisions by outcome (applied|infeasible|unprofitable)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Opening would create an empty log.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		return listRuns(ctx, st, opts, formatter)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	decisions, err := st.ReadDecisions(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read decisions", err)
	}

	shown, err := st.QueryDecisions(ctx, opts.RunID, store.DecisionFilter{
		Phase:   pass.Phase(opts.Phase),
		Outcome: pass.Outcome(opts.Outcome),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read decisions", err)
	}

	result := TraceResult{
		Run:       summarizeRun(run),
		Decisions: shown,
	}
	if result.Decisions == nil {
		result.Decisions = []pass.Decision{}
	}
	result.Stats = countOutcomes(decisions)

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter, result)
	return nil
}

func listRuns(ctx context.Context, st *store.Store, opts *TraceOptions, formatter *OutputFormatter) error {
	var (
		runs []store.Run
		err  error
	)
	if opts.Module != "" {
		runs, err = st.RunsForModule(ctx, opts.Module)
	} else {
		runs, err = st.ReadRuns(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = summarizeRun(r)
	}
	if formatter.JSON() {
		return formatter.Success(map[string]any{"runs": summaries})
	}

	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-9s  %-6s  %s\n", "RUN", "CONV", "ITERS", "SOURCE")
	for _, r := range summaries {
		conv := fmt.Sprintf("%d->%d", r.Before, r.After)
		iters := fmt.Sprintf("%d", r.Iterations)
		if !r.Converged {
			iters += "!"
		}
		fmt.Fprintf(w, "%-36s  %-9s  %-6s  %s\n", r.ID, conv, iters, r.Source)
	}
	return nil
}

func summarizeRun(r store.Run) RunSummary {
	return RunSummary{
		ID:         r.ID,
		Source:     r.Source,
		ModuleHash: r.ModuleHash,
		Iterations: r.Iterations,
		Converged:  r.Converged,
		Before:     r.Before,
		After:      r.After,
		FirstSeq:   r.FirstSeq,
		LastSeq:    r.LastSeq,
		Options:    r.Options,
	}
}

func countOutcomes(decisions []pass.Decision) TraceStats {
	s := TraceStats{Total: len(decisions)}
	for _, d := range decisions {
		switch d.Outcome {
		case pass.OutcomeApplied:
			s.Applied++
		case pass.OutcomeInfeasible:
			s.Infeasible++
		case pass.OutcomeUnprofitable:
			s.Unprofitable++
		}
	}
	return s
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) {
	w := formatter.Writer
	r := result.Run
	fmt.Fprintf(w, "Run: %s\n", r.ID)
	fmt.Fprintf(w, "Source: %s\n", r.Source)
	fmt.Fprintf(w, "Module: %s\n", r.ModuleHash)
	status := "converged"
	if !r.Converged {
		status = "not converged"
	}
	fmt.Fprintf(w, "Conversions: %d -> %d (%d iteration(s), %s)\n\n", r.Before, r.After, r.Iterations, status)

	if len(result.Decisions) == 0 {
		fmt.Fprintln(w, "No decisions.")
	}
	for _, d := range result.Decisions {
		fmt.Fprintf(w, "[%d] it%d %-8s %-12s %s/%s -> %s", d.Seq, d.Iteration, d.Phase, d.Outcome, d.Func, d.Subject, d.Target)
		if d.Outcome != pass.OutcomeInfeasible {
			fmt.Fprintf(w, " (delta %d)", d.Delta)
		}
		fmt.Fprintln(w)
		if d.Reason != "" && formatter.Verbose {
			fmt.Fprintf(w, "      %s\n", strings.TrimSpace(d.Reason))
		}
	}

	s := result.Stats
	fmt.Fprintf(w, "\n%d decision(s): %d applied, %d infeasible, %d unprofitable\n", s.Total, s.Applied, s.Infeasible, s.Unprofitable)
}
