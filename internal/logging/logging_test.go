package logging_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marcin-skalski/copilot-monitor/internal/logging"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := logging.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestForwardHandlerFormatsAttrs(t *testing.T) {
	var lines []string
	h := logging.NewForwardHandler(func(l string) { lines = append(lines, l) }, slog.LevelWarn)
	logger := slog.New(h).With("pr", "acme/api#7").WithGroup("run")

	logger.Info("ignored")
	logger.Warn("rerun failed", "id", 42)
	logger.Error("gone", slog.Group("err", "op", "approve"))

	want := []string{
		"WRN rerun failed pr=acme/api#7 run.id=42",
		"ERR gone pr=acme/api#7 run.err.op=approve",
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
}

func TestMultiHandlerRespectsEachLevel(t *testing.T) {
	var warn, all []string
	h := logging.NewMultiHandler(
		logging.NewForwardHandler(func(l string) { warn = append(warn, l) }, slog.LevelWarn),
		logging.NewForwardHandler(func(l string) { all = append(all, l) }, slog.LevelDebug),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("multi handler must be enabled when any handler is")
	}
	logger := slog.New(h)
	logger.Debug("tick")
	logger.Warn("slow")

	if len(warn) != 1 || len(all) != 2 {
		t.Fatalf("warn=%q all=%q", warn, all)
	}
}

func TestSetupLoggerForwardsWarnings(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "monitor.log")
	var forwarded []string
	logger, err := logging.SetupLogger(logFile, "info", func(l string) { forwarded = append(forwarded, l) })
	if err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	t.Cleanup(func() { _ = logging.CloseFile() })

	logger.Info("sync finished", "items", 3)
	logger.Warn("lookup failed", "pr", "acme/api#7")

	if len(forwarded) != 1 || !strings.HasPrefix(forwarded[0], "WRN lookup failed") {
		t.Fatalf("forwarded = %q", forwarded)
	}
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, want := range []string{"sync finished", "items=3", "lookup failed"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %q:\n%s", want, data)
		}
	}
}
