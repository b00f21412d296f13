// Package activity tracks the lifecycle of Copilot work on a single pull request.
package activity

import "time"

// State is the lifecycle phase of a pull request's automated work.
type State string

const (
	StateIdle               State = "IDLE"
	StateCopilotWorking     State = "COPILOT_WORKING"
	StateWaitingForFeedback State = "WAITING_FOR_FEEDBACK"
	StateAutoFixRequested   State = "AUTO_FIX_REQUESTED"
	StateAutoFixInProgress  State = "AUTO_FIX_IN_PROGRESS"
	StateReadyForRerun      State = "READY_FOR_RERUN"
	StateCIRunning          State = "CI_RUNNING"
	StateError              State = "ERROR"
	StateMaxSessionsReached State = "MAX_SESSIONS_REACHED"
)

// States lists every machine state in declaration order.
var States = []State{
	StateIdle,
	StateCopilotWorking,
	StateWaitingForFeedback,
	StateAutoFixRequested,
	StateAutoFixInProgress,
	StateReadyForRerun,
	StateCIRunning,
	StateError,
	StateMaxSessionsReached,
}

// Working reports whether Copilot holds a live session in this state.
func (s State) Working() bool {
	return s == StateCopilotWorking || s == StateAutoFixInProgress
}

// Event drives a transition.
type Event string

const (
	EventCopilotWorkStarted     Event = "COPILOT_WORK_STARTED"
	EventCopilotWorkFinished    Event = "COPILOT_WORK_FINISHED"
	EventCopilotWorkFailed      Event = "COPILOT_WORK_FAILED"
	EventFailedChecksDetected   Event = "FAILED_CHECKS_DETECTED"
	EventNoFailedChecks         Event = "NO_FAILED_CHECKS"
	EventWorkflowRerunTriggered Event = "WORKFLOW_RERUN_TRIGGERED"
	EventCIStarted              Event = "CI_STARTED"
	EventCICompleted            Event = "CI_COMPLETED"
	EventReset                  Event = "RESET"
)

// Events lists every event in declaration order.
var Events = []Event{
	EventCopilotWorkStarted,
	EventCopilotWorkFinished,
	EventCopilotWorkFailed,
	EventFailedChecksDetected,
	EventNoFailedChecks,
	EventWorkflowRerunTriggered,
	EventCIStarted,
	EventCICompleted,
	EventReset,
}

// Context is the per-pull-request data the machine consults and maintains.
type Context struct {
	HasFailedChecks     bool
	AutoFixEnabled      bool
	AutoApproveEnabled  bool
	Username            string
	PendingWorkflowRuns []int64
	RunningWorkflowRuns []int64
	// SessionCount only grows until Reset.
	SessionCount int
	// MaxSessions caps SessionCount. Zero disables the cap.
	MaxSessions      int
	TotalSessionTime time.Duration
	// CurrentSessionStart is zero unless a session is live.
	CurrentSessionStart time.Time
}

func (c Context) clone() Context {
	c.PendingWorkflowRuns = cloneIDs(c.PendingWorkflowRuns)
	c.RunningWorkflowRuns = cloneIDs(c.RunningWorkflowRuns)
	return c
}

// ContextUpdate selectively overrides Context fields. Nil fields are left alone.
type ContextUpdate struct {
	HasFailedChecks     *bool
	AutoFixEnabled      *bool
	AutoApproveEnabled  *bool
	Username            *string
	PendingWorkflowRuns *[]int64
	RunningWorkflowRuns *[]int64
	SessionCount        *int
	MaxSessions         *int
}

func cloneIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

// EffectKind identifies a side effect requested by a transition.
type EffectKind string

const (
	EffectSessionStarted         EffectKind = "session_started"
	EffectSessionEnded           EffectKind = "session_ended"
	EffectAutoFixRequested       EffectKind = "auto_fix_requested"
	EffectWorkflowRerunRequested EffectKind = "workflow_rerun_requested"
)

// Effect describes work the caller must carry out after a transition.
type Effect struct {
	Kind EffectKind
	// At is the session boundary for session effects.
	At time.Time
	// Elapsed is set on EffectSessionEnded.
	Elapsed time.Duration
	// Outcome is set on EffectSessionEnded: "finished", "failed" or "abandoned".
	Outcome string
	// Runs carries the pending run ids for EffectWorkflowRerunRequested.
	Runs []int64
}

// Descriptor is a display summary of the current state.
type Descriptor struct {
	Label   string
	Message string
	Icon    string
	// Color is an ANSI 256 colour code.
	Color string
}
