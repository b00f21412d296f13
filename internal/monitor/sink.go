package monitor

import (
	"log/slog"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/marcin-skalski/copilot-monitor/internal/activity"
)

// CIStatus summarizes the workflow runs on a pull request head commit.
type CIStatus string

const (
	CIPassing CIStatus = "passing"
	CIFailing CIStatus = "failing"
	CIPending CIStatus = "pending"
	CIRunning CIStatus = "running"
	CIUnknown CIStatus = "unknown"
	CINone    CIStatus = "none"
)

// ItemStatus is the viewer-facing state of one pull request.
type ItemStatus struct {
	Key          string
	Repo         string
	Number       int
	Title        string
	URL          string
	PRState      string
	Draft        bool
	State        activity.State
	Descriptor   activity.Descriptor
	CI           CIStatus
	Class        Class
	SessionCount int
	SessionTime  time.Duration
	// Diagnostics summarizes extracted failures, empty when checks pass.
	Diagnostics string
	UpdatedAt   time.Time
}

// AggregateStatus is the header line of the viewer.
type AggregateStatus struct {
	TotalItems     int
	Active         int
	Stable         int
	Working        int
	LiveSessions   int
	SessionTime    string
	NextRefresh    string
	ActiveInterval time.Duration
	Syncing        bool
	LastSync       time.Time
}

// Snapshot is the result of a sync pass.
type Snapshot struct {
	Items  []ItemStatus
	Status AggregateStatus
}

// DisplayUpdate is the display-only result of a tick.
type DisplayUpdate struct {
	SessionTime  string
	NextRefresh  string
	LiveSessions int
}

// Sink receives everything the scheduler wants shown. Implementations must
// not block for long; they are called from sync goroutines.
type Sink interface {
	Snapshot(items []ItemStatus)
	ItemUpdated(item ItemStatus)
	Status(status AggregateStatus)
	Log(line string)
}

// LogSink renders scheduler output as log lines for headless runs.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Snapshot(items []ItemStatus) {
	active := 0
	for _, it := range items {
		if it.Class == ClassActive {
			active++
		}
	}
	s.logger.Info("sync complete", "items", len(items), "active", active)
}

func (s *LogSink) ItemUpdated(it ItemStatus) {
	attrs := []any{
		"pr", it.Key,
		"title", runewidth.Truncate(it.Title, 60, "…"),
		"state", it.Descriptor.Label,
		"ci", it.CI,
		"class", it.Class,
		"sessions", it.SessionCount,
	}
	if it.Diagnostics != "" {
		attrs = append(attrs, "diagnostics", it.Diagnostics)
	}
	s.logger.Info("pull request", attrs...)
}

func (s *LogSink) Status(st AggregateStatus) {
	s.logger.Debug("status",
		"items", st.TotalItems,
		"working", st.Working,
		"session_time", st.SessionTime,
		"active_interval", st.ActiveInterval,
		"next", st.NextRefresh)
}

func (s *LogSink) Log(line string) {
	s.logger.Info(line)
}
