package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relayout/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph>",
		Short: "Check a graph for structural errors",
		Long: `Check a CUE graph description without optimizing it.

Compilation errors are reported with their position. A graph that compiles
is then checked for terminators, loop shapes and types, conversion shapes,
layout ranks and use-before-definition.

Exit codes:
  0 - graph is valid
  1 - graph has errors
  2 - command error (missing path, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	g, err := LoadGraph(path)
	if err != nil {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) || !compileFailure(loadErr.Code) {
			return loadErrorResponse(formatter, err)
		}
		return outputValidationErrors(formatter, []compiler.ValidationError{{
			Field:   positionOf(loadErr),
			Message: loadErr.Message,
			Code:    loadErr.Code,
		}})
	}

	formatter.VerboseLog("Validating %d func(s) from %s", len(g.Module.Funcs), path)
	if errs := compiler.Validate(g.Module); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ Graph is valid")
	return nil
}

// compileFailure reports whether code describes a graph that was read but
// did not compile.
func compileFailure(code string) bool {
	switch code {
	case ErrCodeNotFound, ErrCodeScanError, ErrCodeNoFiles:
		return false
	}
	return true
}

func positionOf(e *LoadError) string {
	if !e.Pos.IsValid() {
		return "graph"
	}
	return fmt.Sprintf("%s:%d:%d", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
}

func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	msg := fmt.Sprintf("%d validation error(s)", len(errs))
	if formatter.JSON() {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error:  &CLIError{Code: ErrCodeInvalidGraph, Message: msg},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✗ %s\n", msg)
	for _, e := range errs {
		fmt.Fprintf(w, "  [%s] %s: %s\n", e.Code, e.Field, e.Message)
	}
	return NewExitError(ExitFailure, msg)
}
