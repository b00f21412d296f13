package worker

import (
	"context"
	"log/slog"

	"github.com/marcin-skalski/copilot-monitor/internal/config"
	"github.com/marcin-skalski/copilot-monitor/internal/github"
)

// GitHub is the subset of the gh client the executor writes through.
type GitHub interface {
	CommentOnPR(ctx context.Context, repo github.Repo, number int, body string) error
	ApproveRun(ctx context.Context, repo github.Repo, runID int64) error
	RerunFailedJobs(ctx context.Context, repo github.Repo, runID int64) error
}

// Executor carries out the side effects the monitor plans for a pull
// request. Each call acts once and returns; the monitor decides when to call
// again.
type Executor struct {
	gh         GitHub
	logger     *slog.Logger
	maxRecords int
	mention    string
}

func New(gh GitHub, cfg *config.Config, logger *slog.Logger) *Executor {
	return &Executor{
		gh:         gh,
		logger:     logger.With("component", "worker"),
		maxRecords: cfg.Diagnostics.MaxRecords,
		mention:    "@copilot",
	}
}

type runAction int

const (
	runSkip runAction = iota
	runApprove
	runRerun
)

// evaluate decides what a rerun request does with a single run.
func evaluate(r github.WorkflowRun) runAction {
	switch {
	case r.AwaitingApproval():
		return runApprove
	case r.Failed():
		return runRerun
	default:
		return runSkip
	}
}

func (a runAction) String() string {
	switch a {
	case runApprove:
		return "approve"
	case runRerun:
		return "rerun"
	default:
		return "skip"
	}
}
