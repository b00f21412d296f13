package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/marcin-skalski/copilot-monitor/internal/activity"
	"github.com/marcin-skalski/copilot-monitor/internal/github"
)

// ciSettleTimeout bounds how long CI_RUNNING waits for a run to move after
// the scheduler itself started CI.
const ciSettleTimeout = 10 * time.Minute

// latestRuns keeps the newest run of each workflow.
func latestRuns(runs []github.WorkflowRun) []github.WorkflowRun {
	latest := make(map[string]github.WorkflowRun)
	var order []string
	for _, r := range runs {
		cur, ok := latest[r.Name]
		if !ok {
			order = append(order, r.Name)
		}
		if !ok || r.CreatedAt.After(cur.CreatedAt) || (r.CreatedAt.Equal(cur.CreatedAt) && r.ID > cur.ID) {
			latest[r.Name] = r
		}
	}
	out := make([]github.WorkflowRun, 0, len(order))
	for _, name := range order {
		out = append(out, latest[name])
	}
	return out
}

func anyActive(runs []github.WorkflowRun) bool {
	for _, r := range runs {
		if r.Active() {
			return true
		}
	}
	return false
}

func failedRuns(runs []github.WorkflowRun) []github.WorkflowRun {
	var out []github.WorkflowRun
	for _, r := range runs {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

// actionableRuns are the runs a rerun request would act on: those awaiting
// approval and those that failed.
func actionableRuns(latest []github.WorkflowRun) []github.WorkflowRun {
	var out []github.WorkflowRun
	for _, r := range latest {
		if r.AwaitingApproval() || r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

func runIDs(runs []github.WorkflowRun) []int64 {
	ids := make([]int64, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	return ids
}

func runsByID(runs []github.WorkflowRun, ids []int64) []github.WorkflowRun {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []github.WorkflowRun
	for _, r := range runs {
		if want[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

func ciStatus(runs []github.WorkflowRun) CIStatus {
	if len(runs) == 0 {
		return CINone
	}
	if anyActive(runs) {
		return CIRunning
	}
	latest := latestRuns(runs)
	for _, r := range latest {
		if r.AwaitingApproval() {
			return CIPending
		}
	}
	if len(failedRuns(latest)) > 0 {
		return CIFailing
	}
	return CIPassing
}

// failureKey identifies a set of failed run attempts for the diagnostics
// cache.
func failureKey(failed []github.WorkflowRun) string {
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%d@%d", r.ID, r.UpdatedAt.Unix()))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// ciEvent derives the next machine event from the runs on the head commit.
// ciSince is when the machine entered CI_RUNNING.
func ciEvent(m *activity.Machine, runs []github.WorkflowRun, ciSince, now time.Time) (activity.Event, bool) {
	latest := latestRuns(runs)
	switch m.State() {
	case activity.StateWaitingForFeedback:
		if anyActive(runs) {
			return "", false
		}
		if len(failedRuns(latest)) > 0 {
			return activity.EventFailedChecksDetected, true
		}
		return activity.EventNoFailedChecks, true

	case activity.StateReadyForRerun:
		if m.ShouldTriggerAutoApprove() && len(m.Context().PendingWorkflowRuns) > 0 {
			return activity.EventWorkflowRerunTriggered, true
		}
		if anyActive(runs) {
			return activity.EventCIStarted, true
		}

	case activity.StateCIRunning:
		if anyActive(runs) {
			return "", false
		}
		if now.Sub(ciSince) >= ciSettleTimeout {
			return activity.EventCICompleted, true
		}
		for _, r := range latest {
			if r.AwaitingApproval() {
				return "", false
			}
		}
		for _, r := range runs {
			if r.UpdatedAt.After(ciSince) {
				return activity.EventCICompleted, true
			}
		}
	}
	return "", false
}
