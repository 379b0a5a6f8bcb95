package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vibematch",
		Short:         "Vibe Matcher: find fashion that matches your energy",
		SilenceUsage:  true, // don't print usage on operational errors
		SilenceErrors: true,
		Long: `vibematch serves the Vibe Matcher search page and forwards vibe
queries to the recommendation backend. It can also run a single search
from the terminal.`,
	}
	root.AddCommand(newServeCmd(), newSearchCmd(), newVersionCmd())
	return root
}
