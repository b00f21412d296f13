package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ErrAuth is returned when gh is not authenticated or its token is rejected.
var ErrAuth = errors.New("github authentication failed")

// LookupError wraps a failed per-pull-request lookup.
type LookupError struct {
	Item string
	Op   string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Item, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Runner executes gh with args and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

type Client struct {
	logger *slog.Logger
	run    Runner
}

// Option customizes client construction.
type Option func(*Client)

// WithRunner replaces the gh executable, mainly for tests.
func WithRunner(r Runner) Option {
	return func(c *Client) {
		if r != nil {
			c.run = r
		}
	}
}

func NewClient(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{logger: logger, run: execGH}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthenticatedUser returns the login gh is authenticated as.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	out, err := c.gh(ctx, "api", "user", "--jq", ".login")
	if err != nil {
		return "", fmt.Errorf("get authenticated user: %w", err)
	}
	login := strings.TrimSpace(string(out))
	if login == "" {
		return "", fmt.Errorf("get authenticated user: %w: empty login", ErrAuth)
	}
	return login, nil
}

func (c *Client) gh(ctx context.Context, args ...string) ([]byte, error) {
	c.logger.Debug("gh", "args", strings.Join(args, " "))
	out, err := c.run(ctx, args...)
	if err != nil {
		if isAuthFailure(err.Error()) {
			return nil, fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return nil, err
	}
	return out, nil
}

func execGH(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

func isAuthFailure(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range []string{"gh auth login", "http 401", "bad credentials", "not logged in", "authentication required"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
