// Package cli implements the forkjoin-bench command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	forkjoin "github.com/Swind/go-forkjoin-bench"
	"github.com/Swind/go-forkjoin-bench/internal/config"
	"github.com/Swind/go-forkjoin-bench/internal/workload"
)

var version = "0.1.0"

// suite builds the cases of one subcommand.
type suite func(p *forkjoin.Pool, params workload.Params) []workload.Case

// NewRootCmd builds the command tree writing results to stdout and logs and
// errors to stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:     "forkjoin-bench",
		Short:   "Measure wall, CPU and allocation cost of fork/join workloads",
		Version: version,
		Long: `forkjoin-bench runs each workload once sequentially and once on a
work-stealing pool and reports, per run, the wall-clock time together with the
user CPU, system CPU and allocated memory summed over every pool worker thread
and the calling thread.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newSuiteCmd("sort", "Sort random ints sequentially and with a parallel merge sort",
			workload.SortCases),
		newSuiteCmd("factorial", "Compute n! as a tree of futures, combined serially and as pool tasks",
			workload.FactorialFutureCases),
		newSuiteCmd("stream", "Compute n! by sequential and parallel reduction",
			workload.FactorialReduceCases),
		newSuiteCmd("all", "Run the sort, factorial and stream workloads",
			workload.SortCases, workload.FactorialFutureCases, workload.FactorialReduceCases),
	)
	return root
}

func newSuiteCmd(use, short string, suites ...suite) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := newApp(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			var cases []workload.Case
			for _, s := range suites {
				cases = append(cases, s(a.pool, cfg.Params())...)
			}
			return a.Run(cmd.Context(), cases)
		},
	}
}

// Execute runs the command line against the process arguments.
func Execute() error {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
