package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/marcin-skalski/copilot-monitor/internal/config"
	"github.com/marcin-skalski/copilot-monitor/internal/github"
	"github.com/marcin-skalski/copilot-monitor/internal/logging"
	"github.com/marcin-skalski/copilot-monitor/internal/monitor"
	"github.com/marcin-skalski/copilot-monitor/internal/store"
	"github.com/marcin-skalski/copilot-monitor/internal/tui"
	"github.com/marcin-skalski/copilot-monitor/internal/worker"
)

type runOptions struct {
	configPath string
	noTUI      bool
}

func newRunCmd(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Monitor pull requests (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, *opts)
		},
	}
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "disable TUI mode")
	return cmd
}

func runMonitor(cmd *cobra.Command, opts runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	// Auto-detect TUI capability
	enableTUI := !opts.noTUI && os.Getenv("COPILOT_MONITOR_TUI") != "0" &&
		isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())

	var sink *tui.Sink
	var forward func(string)
	if enableTUI {
		sink = tui.NewSink()
		forward = sink.Log
	}

	logger, err := logging.SetupLogger(cfg.LogFile, cfg.Log.Level, forward)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer logging.CloseFile()

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	gh := github.NewClient(logger)
	monitorOpts := []monitor.Option{
		monitor.WithActions(worker.New(gh, cfg, logger)),
		monitor.WithRecorder(st),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !enableTUI {
		logger.Info("copilot-monitor starting (headless)", "config", opts.configPath)
		sched := monitor.New(cfg, gh, monitor.NewLogSink(logger), logger, monitorOpts...)
		return sched.Run(ctx)
	}

	sched := monitor.New(cfg, gh, sink, logger, monitorOpts...)
	return runTUI(ctx, stop, sched, sink, logger, opts.configPath)
}

// runTUI runs the monitor in the background and the TUI in the foreground.
// Quitting the TUI stops the monitor; a fatal monitor error quits the TUI.
func runTUI(ctx context.Context, stop context.CancelFunc, sched *monitor.Scheduler, sink *tui.Sink, logger *slog.Logger, configPath string) error {
	p := tea.NewProgram(tui.NewModel(sched), tea.WithAltScreen(), tea.WithContext(ctx))
	sink.Attach(p)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("copilot-monitor starting in background", "config", configPath)
		err := sched.Run(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Error("monitor error", "err", err)
			p.Quit()
		}
		errCh <- err
	}()

	_, runErr := p.Run()
	stop()
	monErr := <-errCh

	if monErr != nil && !errors.Is(monErr, context.Canceled) {
		return monErr
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", runErr)
	}
	return nil
}
