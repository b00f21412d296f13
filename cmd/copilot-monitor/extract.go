package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcin-skalski/copilot-monitor/internal/diagnostics"
)

func newExtractCmd() *cobra.Command {
	var (
		job      string
		limit    int
		markdown bool
	)
	cmd := &cobra.Command{
		Use:   "extract <log-file>",
		Short: "Extract diagnostics from a CI job log (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readLog(cmd, args[0])
			if err != nil {
				return err
			}
			if job == "" && args[0] != "-" {
				job = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			out := cmd.OutOrStdout()
			res := diagnostics.Extract(raw, job)
			if markdown {
				fmt.Fprint(out, res.Markdown(limit))
				return nil
			}

			fmt.Fprintln(out, res.Summary())
			records := res.Prioritized()
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			for _, rec := range records {
				loc := rec.Location()
				if loc == "" {
					loc = "-"
				}
				fmt.Fprintf(out, "%-8s %-16s %s %s\n", rec.Severity, rec.Tool, loc, rec.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "job name to label records with (default: file name)")
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many records (0 = all)")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render as the markdown posted in auto-fix comments")
	return cmd
}

func readLog(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read log: %w", err)
	}
	return string(data), nil
}
