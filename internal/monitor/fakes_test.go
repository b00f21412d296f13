package monitor_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/marcin-skalski/copilot-monitor/internal/config"
	"github.com/marcin-skalski/copilot-monitor/internal/diagnostics"
	"github.com/marcin-skalski/copilot-monitor/internal/github"
	"github.com/marcin-skalski/copilot-monitor/internal/monitor"
	"github.com/marcin-skalski/copilot-monitor/internal/store"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return base.Add(d) }

var repo = github.Repo{Owner: "acme", Name: "api"}

func pr(n int) github.PullRequest {
	return github.PullRequest{Repo: repo, Number: n, Title: fmt.Sprintf("Copilot change %d", n), State: "open"}
}

func key(n int) string { return pr(n).Key() }

type fakeSource struct {
	mu        sync.Mutex
	user      string
	userErr   error
	prs       []github.PullRequest
	searchErr error
	events    map[string][]github.CopilotEvent
	runs      map[string][]github.WorkflowRun
	runsErr   map[string]error
	logs      map[int64][]github.JobLog
	detailed  map[string]int

	// entered and release, when set, park PullRequest until release closes.
	entered chan struct{}
	release chan struct{}
}

func newSource(prs ...github.PullRequest) *fakeSource {
	return &fakeSource{
		prs:      prs,
		events:   make(map[string][]github.CopilotEvent),
		runs:     make(map[string][]github.WorkflowRun),
		runsErr:  make(map[string]error),
		logs:     make(map[int64][]github.JobLog),
		detailed: make(map[string]int),
	}
}

func (f *fakeSource) setEvents(n int, evs ...github.CopilotEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[key(n)] = evs
}

func (f *fakeSource) setRuns(n int, runs ...github.WorkflowRun) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[key(n)] = runs
}

func (f *fakeSource) setPRs(prs ...github.PullRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prs = prs
}

func (f *fakeSource) AuthenticatedUser(context.Context) (string, error) {
	return f.user, f.userErr
}

func (f *fakeSource) SearchPullRequests(github.Query) *github.Cursor {
	f.mu.Lock()
	prs := append([]github.PullRequest(nil), f.prs...)
	err := f.searchErr
	f.mu.Unlock()
	return github.NewCursor(func(context.Context, int) ([]github.PullRequest, bool, error) {
		if err != nil {
			return nil, false, err
		}
		return prs, true, nil
	})
}

func (f *fakeSource) PullRequest(_ context.Context, r github.Repo, n int) (github.PullRequest, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := github.PullRequest{Repo: r, Number: n}
	for _, candidate := range f.prs {
		if candidate.Repo == r && candidate.Number == n {
			p = candidate
		}
	}
	p.HeadSHA = fmt.Sprintf("sha-%d", n)
	f.detailed[p.Key()]++
	return p, nil
}

func (f *fakeSource) CopilotEvents(_ context.Context, p github.PullRequest) ([]github.CopilotEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]github.CopilotEvent(nil), f.events[p.Key()]...), nil
}

func (f *fakeSource) WorkflowRuns(_ context.Context, p github.PullRequest) ([]github.WorkflowRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.runsErr[p.Key()]; err != nil {
		return nil, &github.LookupError{Item: p.Key(), Op: "list workflow runs", Err: err}
	}
	return append([]github.WorkflowRun(nil), f.runs[p.Key()]...), nil
}

func (f *fakeSource) FailedJobLogs(_ context.Context, _ github.Repo, runID int64) ([]github.JobLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs[runID], nil
}

type fakeSink struct {
	mu        sync.Mutex
	updates   []monitor.ItemStatus
	snapshots [][]monitor.ItemStatus
	statuses  []monitor.AggregateStatus
	lines     []string
}

func (s *fakeSink) Snapshot(items []monitor.ItemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, items)
}

func (s *fakeSink) ItemUpdated(it monitor.ItemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, it)
}

func (s *fakeSink) Status(st monitor.AggregateStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
}

func (s *fakeSink) Log(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

type autoFixCall struct {
	key     string
	failed  []github.WorkflowRun
	results []*diagnostics.Result
}

type fakeActions struct {
	mu      sync.Mutex
	autoFix []autoFixCall
	reruns  [][]github.WorkflowRun
	resumes []string
}

func (a *fakeActions) RequestAutoFix(_ context.Context, p github.PullRequest, failed []github.WorkflowRun, results []*diagnostics.Result) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.autoFix = append(a.autoFix, autoFixCall{key: p.Key(), failed: failed, results: results})
	return nil
}

func (a *fakeActions) RerunWorkflows(_ context.Context, _ github.PullRequest, runs []github.WorkflowRun) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reruns = append(a.reruns, runs)
	return nil
}

func (a *fakeActions) ResumeWork(_ context.Context, p github.PullRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resumes = append(a.resumes, p.Key())
	return nil
}

// fakeRecorder mirrors the store's idempotency on (item, start).
type fakeRecorder struct {
	mu         sync.Mutex
	historical time.Duration
	sessions   []store.Session
	seen       map[string]bool
}

func (r *fakeRecorder) RecordSession(_ context.Context, s store.Session) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	id := s.ItemKey + "@" + s.StartedAt.String()
	if r.seen[id] {
		return false, nil
	}
	r.seen[id] = true
	r.sessions = append(r.sessions, s)
	return true, nil
}

func (r *fakeRecorder) TotalDuration(context.Context) (time.Duration, error) {
	return r.historical, nil
}

type harness struct {
	source   *fakeSource
	sink     *fakeSink
	actions  *fakeActions
	recorder *fakeRecorder
	sched    *monitor.Scheduler
}

func testConfig() *config.Config {
	return &config.Config{
		SyncInterval:   5 * time.Minute,
		ActiveInterval: 30 * time.Second,
		LookbackDays:   7,
		Username:       "octocat",
		Orgs:           []string{"acme"},
		Diagnostics:    config.DiagnosticConfig{IgnoreJobs: []string{"CodeQL"}},
		TUI:            config.TUIConfig{RefreshInterval: time.Second},
	}
}

func newHarness(cfg *config.Config, source *fakeSource) *harness {
	h := &harness{
		source:   source,
		sink:     &fakeSink{},
		actions:  &fakeActions{},
		recorder: &fakeRecorder{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.sched = monitor.New(cfg, source, h.sink, logger,
		monitor.WithActions(h.actions),
		monitor.WithRecorder(h.recorder),
		monitor.WithClock(func() time.Time { return base }))
	return h
}

func started(d time.Duration) github.CopilotEvent {
	return github.CopilotEvent{Kind: github.CopilotWorkStarted, At: at(d)}
}

func finished(d time.Duration) github.CopilotEvent {
	return github.CopilotEvent{Kind: github.CopilotWorkFinished, At: at(d)}
}

func failed(d time.Duration) github.CopilotEvent {
	return github.CopilotEvent{Kind: github.CopilotWorkFinishedFailure, At: at(d)}
}
