// Package monitor polls Copilot pull requests on two cadences, drives their
// activity machines and accounts for session time.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcin-skalski/copilot-monitor/internal/activity"
	"github.com/marcin-skalski/copilot-monitor/internal/config"
	"github.com/marcin-skalski/copilot-monitor/internal/diagnostics"
	"github.com/marcin-skalski/copilot-monitor/internal/github"
	"github.com/marcin-skalski/copilot-monitor/internal/store"
)

// ErrSyncInProgress is returned when a cadence fires while its previous
// pass is still running.
var ErrSyncInProgress = errors.New("sync already in progress")

// DataSource is the read side of GitHub.
type DataSource interface {
	AuthenticatedUser(ctx context.Context) (string, error)
	SearchPullRequests(q github.Query) *github.Cursor
	PullRequest(ctx context.Context, repo github.Repo, number int) (github.PullRequest, error)
	CopilotEvents(ctx context.Context, pr github.PullRequest) ([]github.CopilotEvent, error)
	WorkflowRuns(ctx context.Context, pr github.PullRequest) ([]github.WorkflowRun, error)
	FailedJobLogs(ctx context.Context, repo github.Repo, runID int64) ([]github.JobLog, error)
}

// Actions carries out the automation the activity machines ask for.
type Actions interface {
	RequestAutoFix(ctx context.Context, pr github.PullRequest, failed []github.WorkflowRun, results []*diagnostics.Result) error
	RerunWorkflows(ctx context.Context, pr github.PullRequest, runs []github.WorkflowRun) error
	ResumeWork(ctx context.Context, pr github.PullRequest) error
}

// SessionRecorder persists finished sessions.
type SessionRecorder interface {
	RecordSession(ctx context.Context, s store.Session) (bool, error)
	TotalDuration(ctx context.Context) (time.Duration, error)
}

type item struct {
	pr      github.PullRequest
	machine *activity.Machine
	// applied counts timeline events already fed to the machine.
	applied int
	runs    []github.WorkflowRun
	ci      CIStatus
	ciSince time.Time
	diagKey string
	diags   []*diagnostics.Result
	updated time.Time
}

type Scheduler struct {
	cfg      *config.Config
	source   DataSource
	actions  Actions
	recorder SessionRecorder
	sink     Sink
	logger   *slog.Logger
	clock    func() time.Time
	ignore   diagnostics.IgnoreList

	// started separates replayed timeline history from new activity.
	started time.Time

	mu        sync.Mutex
	username  string
	items     map[string]*item
	order     []string
	partition *Partition
	ledger    *Ledger
	lastSync  time.Time
	nextSync  time.Time
	syncing   bool

	fullRunning   atomic.Bool
	activeRunning atomic.Bool
	refresh       chan struct{}
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

func WithActions(a Actions) Option {
	return func(s *Scheduler) { s.actions = a }
}

func WithRecorder(r SessionRecorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(cfg *config.Config, source DataSource, sink Sink, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:       cfg,
		source:    source,
		sink:      sink,
		logger:    logger,
		clock:     time.Now,
		ignore:    diagnostics.IgnoreList(cfg.Diagnostics.IgnoreJobs),
		username:  cfg.Username,
		items:     make(map[string]*item),
		partition: NewPartition(),
		ledger:    NewLedger(0),
		refresh:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.clock()
	return s
}

// Init resolves the acting user and loads recorded session time. Only an
// authentication failure is returned.
func (s *Scheduler) Init(ctx context.Context) error {
	if s.username == "" {
		login, err := s.source.AuthenticatedUser(ctx)
		if err != nil {
			if errors.Is(err, github.ErrAuth) {
				return fmt.Errorf("resolve user: %w", err)
			}
			s.logger.Warn("could not resolve github user, auto-fix disabled", "err", err)
		} else {
			s.mu.Lock()
			s.username = login
			s.mu.Unlock()
			s.logger.Info("authenticated", "user", login)
		}
	}

	if s.recorder != nil {
		total, err := s.recorder.TotalDuration(ctx)
		if err != nil {
			s.logger.Warn("load session history failed", "err", err)
		} else {
			s.mu.Lock()
			s.ledger.Historical = total
			s.mu.Unlock()
		}
	}
	return nil
}

// Run performs the startup sync and then serves the full sync, active
// refresh and display cadences until ctx is done. Passes still in flight at
// shutdown are not awaited.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("monitor started",
		"sync_interval", s.cfg.SyncInterval,
		"active_interval", s.cfg.ActiveInterval,
		"orgs", len(s.cfg.Orgs),
		"repos", len(s.cfg.Repos))

	if err := s.Init(ctx); err != nil {
		return err
	}
	if _, err := s.RunFullSync(ctx, s.clock()); err != nil {
		if errors.Is(err, github.ErrAuth) {
			return fmt.Errorf("initial sync: %w", err)
		}
		s.logger.Error("initial sync failed", "err", err)
	}

	fullTicker := time.NewTicker(s.cfg.SyncInterval)
	defer fullTicker.Stop()
	activeTicker := time.NewTicker(s.cfg.ActiveInterval)
	defer activeTicker.Stop()
	displayTicker := time.NewTicker(s.cfg.TUI.RefreshInterval)
	defer displayTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("monitor stopped")
			return nil
		case <-fullTicker.C:
			s.goSync(ctx, "full sync", s.RunFullSync)
		case <-s.refresh:
			s.goSync(ctx, "full sync", s.RunFullSync)
		case <-activeTicker.C:
			s.goSync(ctx, "active refresh", s.RunActiveRefresh)
		case <-displayTicker.C:
			s.Tick(s.clock())
		}
	}
}

func (s *Scheduler) goSync(ctx context.Context, name string, pass func(context.Context, time.Time) (Snapshot, error)) {
	go func() {
		if _, err := pass(ctx, s.clock()); err != nil {
			switch {
			case errors.Is(err, ErrSyncInProgress):
				s.logger.Debug(name+" skipped", "reason", err)
			case ctx.Err() != nil:
			default:
				s.logger.Error(name+" failed", "err", err)
			}
		}
	}()
}

// RequestFullSync asks Run for a full sync as soon as possible.
func (s *Scheduler) RequestFullSync() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// RunFullSync enumerates every pull request in the lookback window,
// processes each one and drops tracked items the search no longer returns.
func (s *Scheduler) RunFullSync(ctx context.Context, now time.Time) (Snapshot, error) {
	if !s.fullRunning.CompareAndSwap(false, true) {
		return Snapshot{}, ErrSyncInProgress
	}
	defer s.fullRunning.Store(false)

	s.setSyncing(true, now)
	defer s.endSyncing(now)

	cur := s.source.SearchPullRequests(s.query(now))
	var seen []string
	for cur.Next(ctx) {
		pr := cur.PullRequest()
		seen = append(seen, pr.Key())
		s.sink.ItemUpdated(s.process(ctx, pr, now))
	}
	if err := cur.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("full sync: %w", err)
	}

	s.removeMissing(ctx, seen, now)

	s.mu.Lock()
	s.syncing = false
	s.lastSync = now
	s.nextSync = now.Add(s.cfg.SyncInterval)
	s.mu.Unlock()

	s.logger.Info("full sync done", "items", len(seen))
	return s.emit(now), nil
}

// RunActiveRefresh re-processes only the pull requests classified active.
func (s *Scheduler) RunActiveRefresh(ctx context.Context, now time.Time) (Snapshot, error) {
	if !s.activeRunning.CompareAndSwap(false, true) {
		return Snapshot{}, ErrSyncInProgress
	}
	defer s.activeRunning.Store(false)

	s.mu.Lock()
	var prs []github.PullRequest
	for _, key := range s.order {
		if c, _ := s.partition.Class(key); c == ClassActive {
			prs = append(prs, s.items[key].pr)
		}
	}
	s.mu.Unlock()

	for _, pr := range prs {
		if ctx.Err() != nil {
			return Snapshot{}, ctx.Err()
		}
		s.sink.ItemUpdated(s.process(ctx, pr, now))
	}
	if len(prs) > 0 {
		s.logger.Debug("active refresh done", "items", len(prs))
	}
	return s.emit(now), nil
}

// Tick recomputes the displayed session time. It makes no external calls
// and only notifies the sink while a session is live.
func (s *Scheduler) Tick(now time.Time) DisplayUpdate {
	s.mu.Lock()
	status := s.aggregateLocked(now)
	s.mu.Unlock()

	if status.LiveSessions > 0 {
		s.sink.Status(status)
	}
	return DisplayUpdate{
		SessionTime:  status.SessionTime,
		NextRefresh:  status.NextRefresh,
		LiveSessions: status.LiveSessions,
	}
}

func (s *Scheduler) query(now time.Time) github.Query {
	q := github.Query{Orgs: s.cfg.Orgs}
	for _, r := range s.cfg.Repos {
		q.Repos = append(q.Repos, github.Repo{Owner: r.Owner, Name: r.Name})
	}
	if s.cfg.LookbackDays > 0 {
		q.Since = now.Add(-s.cfg.Lookback())
	}
	return q
}

func (s *Scheduler) setSyncing(syncing bool, now time.Time) {
	s.mu.Lock()
	s.syncing = syncing
	status := s.aggregateLocked(now)
	s.mu.Unlock()
	s.sink.Status(status)
}

// endSyncing clears the syncing flag if a failed pass left it set.
func (s *Scheduler) endSyncing(now time.Time) {
	s.mu.Lock()
	was := s.syncing
	s.mu.Unlock()
	if was {
		s.setSyncing(false, now)
	}
}

// observation is everything fetched for one pull request in one pass.
type observation struct {
	pr        github.PullRequest
	events    []github.CopilotEvent
	eventsErr error
	runs      []github.WorkflowRun
	runsErr   error

	diagKey string
	diags   []*diagnostics.Result
	// diagsOK is set when diags were fetched for diagKey in this pass.
	diagsOK bool
}

// process fetches, applies and acts on one pull request and returns its
// status. Lookup failures are logged and leave the CI status unknown.
func (s *Scheduler) process(ctx context.Context, pr github.PullRequest, now time.Time) ItemStatus {
	obs := s.observe(ctx, pr)

	s.mu.Lock()
	it, plan := s.applyLocked(obs, now)
	s.mu.Unlock()

	s.execute(ctx, plan)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked(it, now)
}

func (s *Scheduler) observe(ctx context.Context, pr github.PullRequest) observation {
	key := pr.Key()
	obs := observation{pr: pr}

	detail, err := s.source.PullRequest(ctx, pr.Repo, pr.Number)
	if err != nil {
		s.lookupFailed(key, err)
		obs.runsErr = err
	} else {
		obs.pr = detail
	}

	obs.events, obs.eventsErr = s.source.CopilotEvents(ctx, obs.pr)
	if obs.eventsErr != nil {
		s.lookupFailed(key, obs.eventsErr)
	}

	if obs.runsErr != nil {
		return obs
	}
	obs.runs, obs.runsErr = s.source.WorkflowRuns(ctx, obs.pr)
	if obs.runsErr != nil {
		s.lookupFailed(key, obs.runsErr)
		return obs
	}

	failed := failedRuns(latestRuns(obs.runs))
	obs.diagKey = failureKey(failed)
	if len(failed) == 0 {
		obs.diagsOK = true
		return obs
	}

	s.mu.Lock()
	cached := s.items[key] != nil && s.items[key].diagKey == obs.diagKey
	s.mu.Unlock()
	if cached {
		return obs
	}

	obs.diags, obs.diagsOK = s.extractFailures(ctx, obs.pr, failed)
	return obs
}

func (s *Scheduler) extractFailures(ctx context.Context, pr github.PullRequest, failed []github.WorkflowRun) ([]*diagnostics.Result, bool) {
	var results []*diagnostics.Result
	for _, run := range failed {
		logs, err := s.source.FailedJobLogs(ctx, pr.Repo, run.ID)
		if err != nil {
			s.lookupFailed(pr.Key(), err)
			return results, false
		}
		for _, l := range logs {
			if s.ignore.Ignores(l.Job.Name) {
				s.logger.Debug("skipping ignored job", "pr", pr.Key(), "job", l.Job.Name)
				continue
			}
			results = append(results, diagnostics.Extract(l.Text, l.Job.Name))
		}
	}
	return results, true
}

func (s *Scheduler) lookupFailed(key string, err error) {
	s.logger.Warn("lookup failed", "pr", key, "err", err)
}

// plan is the work left after applying an observation, run without the
// lock held.
type plan struct {
	pr       github.PullRequest
	sessions []store.Session
	autoFix  bool
	failed   []github.WorkflowRun
	diags    []*diagnostics.Result
	rerun    []github.WorkflowRun
	resume   bool
}

func (s *Scheduler) applyLocked(obs observation, now time.Time) (*item, plan) {
	key := obs.pr.Key()
	it := s.items[key]
	if it == nil {
		it = s.newItemLocked(key)
		s.items[key] = it
		s.order = append(s.order, key)
	}
	it.pr = obs.pr
	it.updated = now
	p := plan{pr: obs.pr}

	switch {
	case obs.eventsErr != nil:
	case len(obs.events) < it.applied:
		// An older observation lost the race with a newer one.
		s.logger.Debug("stale timeline skipped", "pr", key, "applied", it.applied, "got", len(obs.events))
	default:
		for _, ev := range obs.events[it.applied:] {
			at := ev.At
			if at.IsZero() {
				at = now
			}
			s.applyTimelineLocked(it, ev.Kind, at, &p)
		}
		it.applied = len(obs.events)
	}

	if obs.runsErr != nil {
		it.ci = CIUnknown
	} else {
		it.runs = obs.runs
		it.ci = ciStatus(obs.runs)
		if obs.diagsOK {
			it.diagKey, it.diags = obs.diagKey, obs.diags
		}
		s.applyCILocked(it, now, &p)
	}

	s.partition.Set(key, Classify(it.machine.State(), it.runs))
	return it, p
}

func (s *Scheduler) newItemLocked(key string) *item {
	ctx := activity.Context{
		AutoFixEnabled:     s.cfg.Automation.AutoFix,
		AutoApproveEnabled: s.cfg.Automation.AutoApprove,
		Username:           s.username,
		MaxSessions:        s.cfg.Automation.MaxSessions,
	}
	return &item{
		machine: activity.New(ctx,
			activity.WithLogger(s.logger.With("pr", key)),
			activity.WithClock(s.clock)),
		ci: CIUnknown,
	}
}

func timelineEvent(kind github.CopilotEventKind) (activity.Event, bool) {
	switch kind {
	case github.CopilotWorkStarted:
		return activity.EventCopilotWorkStarted, true
	case github.CopilotWorkFinished:
		return activity.EventCopilotWorkFinished, true
	case github.CopilotWorkFinishedFailure:
		return activity.EventCopilotWorkFailed, true
	}
	return "", false
}

// applyTimelineLocked feeds one Copilot timeline event to the machine. The
// timeline is the source of truth, so a start the machine would reject
// outside of a session realigns it instead.
func (s *Scheduler) applyTimelineLocked(it *item, kind github.CopilotEventKind, at time.Time, p *plan) {
	ev, ok := timelineEvent(kind)
	if !ok {
		return
	}
	key := it.pr.Key()
	// History from before this run only updates bookkeeping.
	fresh := !at.Before(s.started)

	effects, err := it.machine.Transition(ev, at)
	if err != nil {
		state := it.machine.State()
		switch {
		case ev == activity.EventCopilotWorkStarted && realigns(state):
			count := it.machine.Context().SessionCount
			effects, _ = it.machine.Transition(activity.EventReset, at)
			it.machine.UpdateContext(activity.ContextUpdate{SessionCount: &count})
			more, err := it.machine.Transition(ev, at)
			if err != nil {
				s.logger.Warn("realign failed", "pr", key, "state", state, "err", err)
				return
			}
			effects = append(effects, more...)
			s.logger.Info("copilot started a new session", "pr", key, "from", state)

		case ev == activity.EventCopilotWorkFailed && state == activity.StateAutoFixInProgress:
			// The fix session ended badly; close it like a finished one.
			effects, err = it.machine.Transition(activity.EventCopilotWorkFinished, at)
			if err != nil {
				return
			}
			for i := range effects {
				if effects[i].Kind == activity.EffectSessionEnded {
					effects[i].Outcome = store.OutcomeFailed
				}
			}

		default:
			s.logger.Debug("timeline event ignored", "pr", key, "state", state, "event", ev)
			return
		}
	}

	s.collectLocked(it, effects, fresh, p)

	if ev == activity.EventCopilotWorkFailed && it.machine.State() != activity.StateMaxSessionsReached &&
		fresh && s.cfg.Automation.ResumeOnFailure {
		p.resume = true
	}
}

func realigns(s activity.State) bool {
	switch s {
	case activity.StateWaitingForFeedback, activity.StateReadyForRerun, activity.StateCIRunning, activity.StateError:
		return true
	}
	return false
}

// applyCILocked refreshes the machine's view of the runs and applies the
// events they imply until none applies.
func (s *Scheduler) applyCILocked(it *item, now time.Time, p *plan) {
	latest := latestRuns(it.runs)
	hasFailed := len(failedRuns(latest)) > 0
	pending := runIDs(actionableRuns(latest))
	var running []int64
	for _, r := range it.runs {
		if r.Active() {
			running = append(running, r.ID)
		}
	}
	it.machine.UpdateContext(activity.ContextUpdate{
		HasFailedChecks:     &hasFailed,
		PendingWorkflowRuns: &pending,
		RunningWorkflowRuns: &running,
	})

	for range activity.States {
		ev, ok := ciEvent(it.machine, it.runs, it.ciSince, now)
		if !ok {
			return
		}
		from := it.machine.State()
		effects, err := it.machine.Transition(ev, now)
		if err != nil {
			return
		}
		if it.machine.State() == activity.StateCIRunning && from != activity.StateCIRunning {
			it.ciSince = now
		}
		s.collectLocked(it, effects, true, p)
	}
}

// collectLocked turns machine effects into ledger updates and planned
// actions. Actions are only planned for fresh events.
func (s *Scheduler) collectLocked(it *item, effects []activity.Effect, fresh bool, p *plan) {
	key := it.pr.Key()
	for _, e := range effects {
		switch e.Kind {
		case activity.EffectSessionStarted:
			s.ledger.Start(key, e.At)

		case activity.EffectSessionEnded:
			start, elapsed, ok := s.ledger.End(key, e.At)
			if !ok {
				continue
			}
			p.sessions = append(p.sessions, store.Session{
				ItemKey:   key,
				Repo:      it.pr.Repo.String(),
				Number:    it.pr.Number,
				StartedAt: start,
				EndedAt:   e.At,
				Duration:  elapsed,
				Outcome:   e.Outcome,
			})

		case activity.EffectAutoFixRequested:
			if fresh {
				p.autoFix = true
				p.failed = failedRuns(latestRuns(it.runs))
				p.diags = it.diags
			}

		case activity.EffectWorkflowRerunRequested:
			if fresh {
				p.rerun = runsByID(it.runs, e.Runs)
			}
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, p plan) {
	key := p.pr.Key()
	for _, sess := range p.sessions {
		s.settle(ctx, sess)
	}
	if s.actions == nil {
		return
	}
	if p.autoFix {
		if err := s.actions.RequestAutoFix(ctx, p.pr, p.failed, p.diags); err != nil {
			s.logger.Error("request auto-fix failed", "pr", key, "err", err)
		} else {
			s.sink.Log(fmt.Sprintf("%s: asked Copilot to fix %d failing workflow(s)", key, len(p.failed)))
		}
	}
	if len(p.rerun) > 0 {
		if err := s.actions.RerunWorkflows(ctx, p.pr, p.rerun); err != nil {
			s.logger.Error("rerun workflows failed", "pr", key, "err", err)
		} else {
			s.sink.Log(fmt.Sprintf("%s: restarted %d workflow run(s)", key, len(p.rerun)))
		}
	}
	if p.resume {
		if err := s.actions.ResumeWork(ctx, p.pr); err != nil {
			s.logger.Error("resume work failed", "pr", key, "err", err)
		} else {
			s.sink.Log(fmt.Sprintf("%s: asked Copilot to resume after a failed session", key))
		}
	}
}

// settle records an ended session and counts it toward this run unless the
// store already knew it.
func (s *Scheduler) settle(ctx context.Context, sess store.Session) {
	counted := true
	if s.recorder != nil {
		isNew, err := s.recorder.RecordSession(ctx, sess)
		if err != nil {
			s.logger.Warn("record session failed", "pr", sess.ItemKey, "err", err)
		} else {
			counted = isNew
		}
	}
	s.mu.Lock()
	s.ledger.Settle(sess.Duration, counted)
	s.mu.Unlock()
	if counted {
		s.logger.Info("copilot session ended",
			"pr", sess.ItemKey,
			"outcome", sess.Outcome,
			"duration", sess.Duration.Round(time.Second))
	}
}

func (s *Scheduler) removeMissing(ctx context.Context, seen []string, now time.Time) {
	present := make(map[string]bool, len(seen))
	order := make([]string, 0, len(seen))
	for _, k := range seen {
		if !present[k] {
			present[k] = true
			order = append(order, k)
		}
	}

	var abandoned []store.Session
	s.mu.Lock()
	for key, it := range s.items {
		if present[key] {
			continue
		}
		if start, elapsed, ok := s.ledger.End(key, now); ok {
			abandoned = append(abandoned, store.Session{
				ItemKey:   key,
				Repo:      it.pr.Repo.String(),
				Number:    it.pr.Number,
				StartedAt: start,
				EndedAt:   now,
				Duration:  elapsed,
				Outcome:   store.OutcomeAbandoned,
			})
		}
		delete(s.items, key)
		s.partition.Remove(key)
		s.logger.Info("pull request left the monitoring window", "pr", key)
	}
	s.order = order
	s.mu.Unlock()

	for _, sess := range abandoned {
		s.settle(ctx, sess)
	}
}

func (s *Scheduler) emit(now time.Time) Snapshot {
	s.mu.Lock()
	snap := Snapshot{Items: make([]ItemStatus, 0, len(s.order))}
	for _, key := range s.order {
		if it, ok := s.items[key]; ok {
			snap.Items = append(snap.Items, s.statusLocked(it, now))
		}
	}
	snap.Status = s.aggregateLocked(now)
	s.mu.Unlock()

	s.sink.Snapshot(snap.Items)
	s.sink.Status(snap.Status)
	return snap
}

func (s *Scheduler) statusLocked(it *item, now time.Time) ItemStatus {
	key := it.pr.Key()
	mctx := it.machine.Context()
	sessionTime := mctx.TotalSessionTime
	if !mctx.CurrentSessionStart.IsZero() {
		sessionTime += clampElapsed(mctx.CurrentSessionStart, now)
	}
	class, _ := s.partition.Class(key)
	st := ItemStatus{
		Key:          key,
		Repo:         it.pr.Repo.String(),
		Number:       it.pr.Number,
		Title:        it.pr.Title,
		URL:          it.pr.URL,
		PRState:      it.pr.State,
		Draft:        it.pr.Draft,
		State:        it.machine.State(),
		Descriptor:   it.machine.StatusDescriptor(),
		CI:           it.ci,
		Class:        class,
		SessionCount: mctx.SessionCount,
		SessionTime:  sessionTime,
		UpdatedAt:    it.updated,
	}
	if it.ci == CIFailing {
		st.Diagnostics = summarize(it.diags)
	}
	return st
}

func summarize(results []*diagnostics.Result) string {
	if len(results) == 0 {
		return ""
	}
	summary := results[0].Summary()
	if len(results) > 1 {
		summary += fmt.Sprintf(" (+%d more jobs)", len(results)-1)
	}
	return summary
}

func (s *Scheduler) aggregateLocked(now time.Time) AggregateStatus {
	st := AggregateStatus{
		TotalItems:   len(s.items),
		Active:         s.partition.Count(ClassActive),
		Stable:         s.partition.Count(ClassStable),
		LiveSessions:   s.ledger.Live(),
		SessionTime:    FormatSessionTime(s.ledger.Total(now)),
		ActiveInterval: s.cfg.ActiveInterval,
		Syncing:        s.syncing,
		LastSync:       s.lastSync,
	}
	for _, it := range s.items {
		if it.machine.State().Working() {
			st.Working++
		}
	}
	switch {
	case s.syncing:
		st.NextRefresh = "syncing"
	case s.nextSync.IsZero():
		st.NextRefresh = "waiting for first sync"
	default:
		d := s.nextSync.Sub(now).Round(time.Second)
		if d < 0 {
			d = 0
		}
		st.NextRefresh = "next sync in " + d.String()
	}
	return st
}
