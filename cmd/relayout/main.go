// Command relayout removes redundant layout conversions from tensor
// dataflow graphs described in CUE.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/relayout/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
