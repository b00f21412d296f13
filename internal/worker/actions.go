package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marcin-skalski/copilot-monitor/internal/diagnostics"
	"github.com/marcin-skalski/copilot-monitor/internal/github"
)

// RequestAutoFix asks Copilot to fix the failing runs, quoting whatever
// diagnostics were extracted from their logs.
func (e *Executor) RequestAutoFix(ctx context.Context, pr github.PullRequest, failed []github.WorkflowRun, results []*diagnostics.Result) error {
	logger := e.logger.With("pr", pr.Key())
	logger.Info("requesting auto-fix", "failed_runs", len(failed), "results", len(results))

	body := e.autoFixComment(failed, results)
	if err := e.gh.CommentOnPR(ctx, pr.Repo, pr.Number, body); err != nil {
		return fmt.Errorf("request auto-fix: %w", err)
	}

	logger.Info("auto-fix requested")
	return nil
}

func (e *Executor) autoFixComment(failed []github.WorkflowRun, results []*diagnostics.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s CI checks are failing on this pull request. Please investigate and push a fix.\n", e.mention)

	if len(failed) > 0 {
		b.WriteString("\nFailing workflows:\n")
		for _, r := range failed {
			fmt.Fprintf(&b, "- %s (%s)", r.Name, r.Conclusion)
			if r.URL != "" {
				fmt.Fprintf(&b, ": %s", r.URL)
			}
			b.WriteString("\n")
		}
	}

	var found bool
	for _, res := range results {
		if res == nil || len(res.Records) == 0 {
			continue
		}
		if !found {
			b.WriteString("\nDiagnostics from the job logs:\n\n")
			found = true
		}
		b.WriteString(res.Markdown(e.maxRecords))
		b.WriteString("\n")
	}
	return b.String()
}

// RerunWorkflows approves runs waiting for approval and reruns the failed
// jobs of failed runs. Every run is attempted; errors are joined.
func (e *Executor) RerunWorkflows(ctx context.Context, pr github.PullRequest, runs []github.WorkflowRun) error {
	logger := e.logger.With("pr", pr.Key())

	var errs []error
	for _, r := range runs {
		action := evaluate(r)
		logger.Debug("evaluated run", "run", r.ID, "workflow", r.Name, "action", action.String())

		var err error
		switch action {
		case runApprove:
			err = e.gh.ApproveRun(ctx, pr.Repo, r.ID)
		case runRerun:
			err = e.gh.RerunFailedJobs(ctx, pr.Repo, r.ID)
		default:
			continue
		}
		if err != nil {
			logger.Error("workflow action failed", "run", r.ID, "action", action.String(), "err", err)
			errs = append(errs, err)
			continue
		}
		logger.Info("workflow action done", "run", r.ID, "workflow", r.Name, "action", action.String())
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("rerun workflows: %w", err)
	}
	return nil
}

// ResumeWork asks Copilot to continue after its session ended in failure.
func (e *Executor) ResumeWork(ctx context.Context, pr github.PullRequest) error {
	body := fmt.Sprintf("%s Your last session on this pull request ended with an error. Please resume the work and finish the task.", e.mention)
	if err := e.gh.CommentOnPR(ctx, pr.Repo, pr.Number, body); err != nil {
		return fmt.Errorf("resume work: %w", err)
	}
	e.logger.Info("resume requested", "pr", pr.Key())
	return nil
}
