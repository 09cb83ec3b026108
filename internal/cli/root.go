package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

const rootLong = `Remove redundant layout conversions from tensor dataflow graphs.

Graphs are described in CUE. The optimizer rematerializes producers in the
layout their consumers want, hoists conversions out of loops and records
every decision it makes in an optional SQLite decision log.`

// NewRootCommand creates the root command for the relayout CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cmd := &cobra.Command{
		Use:               "relayout",
		Short:             "relayout - layout conversion minimization",
		Long:              rootLong,
		PersistentPreRunE: opts.check,
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	for _, sub := range []func(*RootOptions) *cobra.Command{
		NewCompileCommand,
		NewValidateCommand,
		NewOptCommand,
		NewSimulateCommand,
		NewDotCommand,
		NewTestCommand,
		NewTraceCommand,
	} {
		cmd.AddCommand(sub(opts))
	}
	return cmd
}

func (o *RootOptions) check(*cobra.Command, []string) error {
	if !slices.Contains(ValidFormats, o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}
	return nil
}
