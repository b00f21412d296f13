package github

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Workflow run statuses and conclusions used by the GitHub Actions API.
const (
	RunQueued         = "queued"
	RunInProgress     = "in_progress"
	RunCompleted      = "completed"
	RunActionRequired = "action_required"
	RunWaiting        = "waiting"
	RunPending        = "pending"
	RunRequested      = "requested"

	ConclusionSuccess        = "success"
	ConclusionFailure        = "failure"
	ConclusionTimedOut       = "timed_out"
	ConclusionStartupFailure = "startup_failure"
	ConclusionActionRequired = "action_required"
)

type WorkflowRun struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	HeadSHA    string    `json:"head_sha"`
	HeadBranch string    `json:"head_branch"`
	URL        string    `json:"html_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Active reports whether the run is queued or executing.
func (r WorkflowRun) Active() bool {
	return r.Status == RunQueued || r.Status == RunInProgress || r.Status == RunRequested
}

// AwaitingApproval reports whether the run waits for a maintainer to approve
// it, as runs triggered by the Copilot agent do.
func (r WorkflowRun) AwaitingApproval() bool {
	return r.Status == RunActionRequired || r.Status == RunWaiting || r.Status == RunPending ||
		(r.Status == RunCompleted && r.Conclusion == ConclusionActionRequired)
}

// Failed reports whether the run completed unsuccessfully.
func (r WorkflowRun) Failed() bool {
	if r.Status != RunCompleted {
		return false
	}
	switch r.Conclusion {
	case ConclusionFailure, ConclusionTimedOut, ConclusionStartupFailure:
		return true
	}
	return false
}

type Job struct {
	ID         int64  `json:"id"`
	RunID      int64  `json:"run_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

// JobLog is the raw log of one failed job.
type JobLog struct {
	Job  Job
	Text string
}

// WorkflowRuns returns the workflow runs for the pull request head commit,
// newest first.
func (c *Client) WorkflowRuns(ctx context.Context, pr PullRequest) ([]WorkflowRun, error) {
	if pr.HeadSHA == "" {
		return nil, &LookupError{Item: pr.Key(), Op: "list workflow runs", Err: fmt.Errorf("head sha unknown")}
	}
	out, err := c.gh(ctx, "api", "-X", "GET", fmt.Sprintf("repos/%s/actions/runs", pr.Repo),
		"-f", "head_sha="+pr.HeadSHA,
		"-F", "per_page=100",
	)
	if err != nil {
		return nil, &LookupError{Item: pr.Key(), Op: "list workflow runs", Err: err}
	}
	var resp struct {
		WorkflowRuns []WorkflowRun `json:"workflow_runs"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, &LookupError{Item: pr.Key(), Op: "parse workflow runs", Err: err}
	}
	return resp.WorkflowRuns, nil
}

// FailedJobLogs downloads the logs of every failed job in a run.
func (c *Client) FailedJobLogs(ctx context.Context, repo Repo, runID int64) ([]JobLog, error) {
	item := fmt.Sprintf("%s run %d", repo, runID)
	out, err := c.gh(ctx, "api", fmt.Sprintf("repos/%s/actions/runs/%d/jobs", repo, runID), "-F", "per_page=100")
	if err != nil {
		return nil, &LookupError{Item: item, Op: "list jobs", Err: err}
	}
	var resp struct {
		Jobs []Job `json:"jobs"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, &LookupError{Item: item, Op: "parse jobs", Err: err}
	}

	var logs []JobLog
	for _, j := range resp.Jobs {
		if j.Conclusion != ConclusionFailure && j.Conclusion != ConclusionTimedOut {
			continue
		}
		text, err := c.gh(ctx, "api", fmt.Sprintf("repos/%s/actions/jobs/%d/logs", repo, j.ID))
		if err != nil {
			return nil, &LookupError{Item: item, Op: "download log of job " + j.Name, Err: err}
		}
		logs = append(logs, JobLog{Job: j, Text: string(text)})
	}
	return logs, nil
}

// CommentOnPR posts a comment on a pull request.
func (c *Client) CommentOnPR(ctx context.Context, repo Repo, number int, body string) error {
	_, err := c.gh(ctx, "pr", "comment", fmt.Sprintf("%d", number), "-R", repo.String(), "--body", body)
	if err != nil {
		return fmt.Errorf("comment on %s#%d: %w", repo, number, err)
	}
	return nil
}

// ApproveRun approves a workflow run waiting for maintainer approval.
func (c *Client) ApproveRun(ctx context.Context, repo Repo, runID int64) error {
	_, err := c.gh(ctx, "api", "-X", "POST", fmt.Sprintf("repos/%s/actions/runs/%d/approve", repo, runID))
	if err != nil {
		return fmt.Errorf("approve run %d: %w", runID, err)
	}
	return nil
}

// RerunFailedJobs reruns the failed jobs of a completed workflow run.
func (c *Client) RerunFailedJobs(ctx context.Context, repo Repo, runID int64) error {
	_, err := c.gh(ctx, "run", "rerun", fmt.Sprintf("%d", runID), "-R", repo.String(), "--failed")
	if err != nil {
		return fmt.Errorf("rerun run %d: %w", runID, err)
	}
	return nil
}
