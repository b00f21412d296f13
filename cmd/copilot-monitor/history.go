package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcin-skalski/copilot-monitor/internal/config"
	"github.com/marcin-skalski/copilot-monitor/internal/monitor"
	"github.com/marcin-skalski/copilot-monitor/internal/store"
)

func newHistoryCmd(opts *runOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded Copilot sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			st, err := store.New(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			sessions, err := st.ListSessions(ctx, limit)
			if err != nil {
				return err
			}
			total, err := st.TotalDuration(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "no sessions recorded")
			}
			for _, s := range sessions {
				fmt.Fprintf(out, "%-28s %s  %s  %-9s\n",
					s.ItemKey,
					s.EndedAt.Local().Format(time.DateTime),
					monitor.FormatSessionTime(s.Duration),
					s.Outcome)
			}
			fmt.Fprintf(out, "total session time: %s\n", monitor.FormatSessionTime(total))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of most recent sessions to show")
	return cmd
}
