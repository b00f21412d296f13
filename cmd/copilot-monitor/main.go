package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts runOptions

	root := &cobra.Command{
		Use:           "copilot-monitor",
		Short:         "Watch Copilot coding agent pull requests and keep their CI moving",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to config file")
	root.Flags().BoolVar(&opts.noTUI, "no-tui", false, "disable TUI mode")

	root.AddCommand(newRunCmd(&opts))
	root.AddCommand(newExtractCmd())
	root.AddCommand(newHistoryCmd(&opts))
	return root
}
