package activity

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ErrInvalidTransition is matched by every rejected transition.
var ErrInvalidTransition = errors.New("invalid transition")

// InvalidTransitionError reports an event the current state does not accept.
type InvalidTransitionError struct {
	From  State
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s in state %s", e.Event, e.From)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Machine is the lifecycle state machine of one pull request. It performs no
// I/O; side effects are returned to the caller as Effect values.
type Machine struct {
	state  State
	ctx    Context
	logger *slog.Logger
	clock  func() time.Time
}

// Option customizes machine construction.
type Option func(*Machine)

// WithLogger sets the logger used to report rejected transitions.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the clock used by Reset.
func WithClock(clock func() time.Time) Option {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// New returns a machine in StateIdle seeded with ctx.
func New(ctx Context, opts ...Option) *Machine {
	m := &Machine{
		state:  StateIdle,
		ctx:    ctx.clone(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Machine) State() State {
	return m.state
}

// Context returns a copy of the machine context.
func (m *Machine) Context() Context {
	return m.ctx.clone()
}

// UpdateContext applies the non-nil fields of u.
func (m *Machine) UpdateContext(u ContextUpdate) {
	if u.HasFailedChecks != nil {
		m.ctx.HasFailedChecks = *u.HasFailedChecks
	}
	if u.AutoFixEnabled != nil {
		m.ctx.AutoFixEnabled = *u.AutoFixEnabled
	}
	if u.AutoApproveEnabled != nil {
		m.ctx.AutoApproveEnabled = *u.AutoApproveEnabled
	}
	if u.Username != nil {
		m.ctx.Username = *u.Username
	}
	if u.PendingWorkflowRuns != nil {
		m.ctx.PendingWorkflowRuns = cloneIDs(*u.PendingWorkflowRuns)
	}
	if u.RunningWorkflowRuns != nil {
		m.ctx.RunningWorkflowRuns = cloneIDs(*u.RunningWorkflowRuns)
	}
	if u.SessionCount != nil {
		m.ctx.SessionCount = *u.SessionCount
	}
	if u.MaxSessions != nil {
		m.ctx.MaxSessions = *u.MaxSessions
	}
}

// Transition applies ev at time now. A rejected event leaves the machine
// untouched and returns an *InvalidTransitionError.
func (m *Machine) Transition(ev Event, now time.Time) ([]Effect, error) {
	if ev == EventReset {
		return m.reset(now), nil
	}

	from := m.state
	var effects []Effect
	switch {
	case from == StateIdle && ev == EventCopilotWorkStarted:
		effects = m.startSession(StateCopilotWorking, now)

	case from == StateCopilotWorking && ev == EventCopilotWorkFinished:
		effects = m.endSession(StateWaitingForFeedback, "finished", now)

	case from == StateCopilotWorking && ev == EventCopilotWorkFailed:
		effects = m.endSession(StateError, "failed", now)

	case from == StateWaitingForFeedback && ev == EventFailedChecksDetected:
		switch {
		case m.ctx.AutoFixEnabled && m.ctx.Username != "":
			m.state = StateAutoFixRequested
			effects = []Effect{{Kind: EffectAutoFixRequested, At: now}}
		case m.ctx.AutoApproveEnabled:
			m.state = StateReadyForRerun
		default:
			m.state = StateIdle
		}

	case from == StateWaitingForFeedback && ev == EventNoFailedChecks:
		if m.ctx.AutoApproveEnabled {
			m.state = StateReadyForRerun
		} else {
			m.state = StateIdle
		}

	case from == StateAutoFixRequested && ev == EventCopilotWorkStarted:
		effects = m.startSession(StateAutoFixInProgress, now)

	case from == StateAutoFixInProgress && ev == EventCopilotWorkFinished:
		effects = m.endSession(StateReadyForRerun, "finished", now)

	case from == StateReadyForRerun && ev == EventWorkflowRerunTriggered:
		m.state = StateCIRunning
		effects = []Effect{{Kind: EffectWorkflowRerunRequested, At: now, Runs: cloneIDs(m.ctx.PendingWorkflowRuns)}}

	case from == StateReadyForRerun && ev == EventCIStarted:
		m.state = StateCIRunning

	case from == StateCIRunning && ev == EventCICompleted:
		m.state = StateIdle

	default:
		err := &InvalidTransitionError{From: from, Event: ev}
		m.logger.Debug("transition rejected", "state", from, "event", ev)
		return nil, err
	}

	m.logger.Debug("transition", "from", from, "event", ev, "to", m.state)
	return effects, nil
}

// Reset returns the machine to StateIdle. See Transition with EventReset.
func (m *Machine) Reset() {
	m.reset(m.clock())
}

// reset clears the lifecycle (state, session count, live session, CI
// observations) and keeps configuration and accumulated session time.
func (m *Machine) reset(now time.Time) []Effect {
	var effects []Effect
	if !m.ctx.CurrentSessionStart.IsZero() {
		elapsed := elapsedSince(m.ctx.CurrentSessionStart, now)
		m.ctx.TotalSessionTime += elapsed
		effects = append(effects, Effect{
			Kind:    EffectSessionEnded,
			At:      now,
			Elapsed: elapsed,
			Outcome: "abandoned",
		})
	}
	from := m.state
	m.state = StateIdle
	m.ctx.SessionCount = 0
	m.ctx.CurrentSessionStart = time.Time{}
	m.ctx.HasFailedChecks = false
	m.ctx.PendingWorkflowRuns = nil
	m.ctx.RunningWorkflowRuns = nil
	m.logger.Debug("transition", "from", from, "event", EventReset, "to", m.state)
	return effects
}

func (m *Machine) startSession(next State, now time.Time) []Effect {
	m.state = next
	m.ctx.CurrentSessionStart = now
	return []Effect{{Kind: EffectSessionStarted, At: now}}
}

func (m *Machine) endSession(next State, outcome string, now time.Time) []Effect {
	elapsed := elapsedSince(m.ctx.CurrentSessionStart, now)
	m.ctx.TotalSessionTime += elapsed
	m.ctx.CurrentSessionStart = time.Time{}
	m.ctx.SessionCount++
	if m.capReached() {
		next = StateMaxSessionsReached
	}
	m.state = next
	return []Effect{{Kind: EffectSessionEnded, At: now, Elapsed: elapsed, Outcome: outcome}}
}

func (m *Machine) capReached() bool {
	return m.ctx.MaxSessions > 0 && m.ctx.SessionCount >= m.ctx.MaxSessions
}

func elapsedSince(start, now time.Time) time.Duration {
	if start.IsZero() || now.Before(start) {
		return 0
	}
	return now.Sub(start)
}

// ShouldMonitorCI reports whether workflow runs decide the next transition.
func (m *Machine) ShouldMonitorCI() bool {
	return m.state == StateReadyForRerun || m.state == StateCIRunning
}

func (m *Machine) ShouldRequestAutoFix() bool {
	return m.ctx.HasFailedChecks && m.ctx.AutoFixEnabled && m.ctx.Username != ""
}

func (m *Machine) ShouldTriggerAutoApprove() bool {
	return m.state == StateReadyForRerun && m.ctx.AutoApproveEnabled
}

// StatusDescriptor summarizes the current state for display.
func (m *Machine) StatusDescriptor() Descriptor {
	switch m.state {
	case StateIdle:
		return Descriptor{Label: "Idle", Message: "No automated work in progress", Icon: "💤", Color: "240"}
	case StateCopilotWorking:
		return Descriptor{
			Label:   "Copilot working",
			Message: fmt.Sprintf("Copilot is working on this pull request (session %d)", m.ctx.SessionCount+1),
			Icon:    "🤖",
			Color:   "33",
		}
	case StateWaitingForFeedback:
		return Descriptor{Label: "Awaiting checks", Message: "Copilot finished, waiting for check results", Icon: "⏳", Color: "135"}
	case StateAutoFixRequested:
		return Descriptor{Label: "Fix requested", Message: "Asked Copilot to fix failing checks", Icon: "🔧", Color: "208"}
	case StateAutoFixInProgress:
		return Descriptor{Label: "Fixing checks", Message: "Copilot is fixing failing checks", Icon: "🔨", Color: "214"}
	case StateReadyForRerun:
		return Descriptor{Label: "Ready for rerun", Message: "Workflows are ready to run", Icon: "🔁", Color: "220"}
	case StateCIRunning:
		return Descriptor{Label: "CI running", Message: "Workflows are running", Icon: "⚙️", Color: "33"}
	case StateError:
		return Descriptor{Label: "Error", Message: "Copilot session failed", Icon: "❌", Color: "196"}
	case StateMaxSessionsReached:
		msg := "Session limit reached, reset to continue"
		if m.ctx.MaxSessions > 0 {
			msg = fmt.Sprintf("Session limit reached (%d/%d), reset to continue", m.ctx.SessionCount, m.ctx.MaxSessions)
		}
		return Descriptor{Label: "Session limit", Message: msg, Icon: "🛑", Color: "196"}
	default:
		return Descriptor{Label: "Unknown", Message: fmt.Sprintf("Unrecognized state %q", m.state), Icon: "❓", Color: "252"}
	}
}
