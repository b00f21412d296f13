package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CopilotAuthor is the search qualifier for pull requests opened by the
// Copilot coding agent.
const CopilotAuthor = "app/copilot-swe-agent"

// searchLimit is the GitHub search API result ceiling.
const searchLimit = 1000

type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepo parses "owner/name".
func ParseRepo(s string) (Repo, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repo{}, fmt.Errorf("invalid repository %q (want owner/name)", s)
	}
	return Repo{Owner: owner, Name: name}, nil
}

type PullRequest struct {
	Repo      Repo
	Number    int
	Title     string
	URL       string
	State     string // open|closed|merged
	Draft     bool
	Author    string
	HeadSHA   string
	HeadRef   string
	BaseRef   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key identifies a pull request across repositories: owner/repo#number.
func (p PullRequest) Key() string {
	return fmt.Sprintf("%s#%d", p.Repo, p.Number)
}

// Query selects the pull requests to monitor.
type Query struct {
	Orgs   []string
	Repos  []Repo
	Since  time.Time
	Author string
	// PerPage defaults to 50.
	PerPage int
}

func (q Query) searchString() string {
	author := q.Author
	if author == "" {
		author = CopilotAuthor
	}
	parts := []string{"is:pr", "author:" + author}
	if !q.Since.IsZero() {
		parts = append(parts, "updated:>="+q.Since.UTC().Format("2006-01-02"))
	}
	for _, org := range q.Orgs {
		parts = append(parts, "org:"+org)
	}
	for _, r := range q.Repos {
		parts = append(parts, "repo:"+r.String())
	}
	return strings.Join(parts, " ")
}

type searchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []searchItem `json:"items"`
}

type searchItem struct {
	Number        int       `json:"number"`
	Title         string    `json:"title"`
	HTMLURL       string    `json:"html_url"`
	State         string    `json:"state"`
	Draft         bool      `json:"draft"`
	RepositoryURL string    `json:"repository_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	User          struct {
		Login string `json:"login"`
	} `json:"user"`
	PullRequest struct {
		MergedAt *time.Time `json:"merged_at"`
	} `json:"pull_request"`
}

func (it searchItem) pullRequest() PullRequest {
	pr := PullRequest{
		Repo:      repoFromAPIURL(it.RepositoryURL),
		Number:    it.Number,
		Title:     it.Title,
		URL:       it.HTMLURL,
		State:     it.State,
		Draft:     it.Draft,
		Author:    it.User.Login,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
	if it.PullRequest.MergedAt != nil {
		pr.State = "merged"
	}
	return pr
}

// repoFromAPIURL parses https://api.github.com/repos/owner/name.
func repoFromAPIURL(u string) Repo {
	idx := strings.LastIndex(u, "/repos/")
	if idx < 0 {
		return Repo{}
	}
	r, err := ParseRepo(u[idx+len("/repos/"):])
	if err != nil {
		return Repo{}
	}
	return r
}

// PageFunc fetches one 1-based page of pull requests and reports whether it
// was the last one.
type PageFunc func(ctx context.Context, page int) (prs []PullRequest, last bool, err error)

// Cursor walks search results one page at a time. It is forward-only; to
// start over, issue a new search.
type Cursor struct {
	fetchPage PageFunc

	page int
	buf  []PullRequest
	cur  PullRequest
	done bool
	err  error
}

// NewCursor returns a cursor that pulls pages from fetch on demand.
func NewCursor(fetch PageFunc) *Cursor {
	return &Cursor{fetchPage: fetch}
}

// SearchPullRequests returns a cursor over the pull requests matching q.
// Nothing is fetched until the first call to Next.
func (c *Client) SearchPullRequests(q Query) *Cursor {
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	query := q.searchString()
	fetched := 0
	return NewCursor(func(ctx context.Context, page int) ([]PullRequest, bool, error) {
		out, err := c.gh(ctx, "api", "-X", "GET", "search/issues",
			"-f", "q="+query,
			"-F", fmt.Sprintf("per_page=%d", perPage),
			"-F", fmt.Sprintf("page=%d", page),
		)
		if err != nil {
			return nil, false, fmt.Errorf("search pull requests (page %d): %w", page, err)
		}
		var resp searchResponse
		if err := json.Unmarshal(out, &resp); err != nil {
			return nil, false, fmt.Errorf("parse search page %d: %w", page, err)
		}
		prs := make([]PullRequest, 0, len(resp.Items))
		for _, it := range resp.Items {
			prs = append(prs, it.pullRequest())
		}
		fetched += len(resp.Items)
		last := len(resp.Items) < perPage || fetched >= resp.TotalCount || fetched >= searchLimit
		return prs, last, nil
	})
}

// Next advances to the next pull request, fetching another page when the
// buffered one is exhausted.
func (cur *Cursor) Next(ctx context.Context) bool {
	for len(cur.buf) == 0 {
		if cur.err != nil || cur.done {
			return false
		}
		if err := ctx.Err(); err != nil {
			cur.err = err
			return false
		}
		cur.page++
		prs, last, err := cur.fetchPage(ctx, cur.page)
		if err != nil {
			cur.err = err
			return false
		}
		cur.buf, cur.done = prs, last
	}
	cur.cur, cur.buf = cur.buf[0], cur.buf[1:]
	return true
}

func (cur *Cursor) PullRequest() PullRequest {
	return cur.cur
}

// Err returns the error that stopped iteration, if any.
func (cur *Cursor) Err() error {
	return cur.err
}

// ListPullRequests drains a search into a slice.
func (c *Client) ListPullRequests(ctx context.Context, q Query) ([]PullRequest, error) {
	cur := c.SearchPullRequests(q)
	var prs []PullRequest
	for cur.Next(ctx) {
		prs = append(prs, cur.PullRequest())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return prs, nil
}

type pullDetail struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	HTMLURL   string     `json:"html_url"`
	State     string     `json:"state"`
	Draft     bool       `json:"draft"`
	MergedAt  *time.Time `json:"merged_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
	Head struct {
		SHA string `json:"sha"`
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

// PullRequest fetches the current state of one pull request, including its
// head commit.
func (c *Client) PullRequest(ctx context.Context, repo Repo, number int) (PullRequest, error) {
	item := fmt.Sprintf("%s#%d", repo, number)
	out, err := c.gh(ctx, "api", fmt.Sprintf("repos/%s/pulls/%d", repo, number))
	if err != nil {
		return PullRequest{}, &LookupError{Item: item, Op: "get pull request", Err: err}
	}
	var d pullDetail
	if err := json.Unmarshal(out, &d); err != nil {
		return PullRequest{}, &LookupError{Item: item, Op: "parse pull request", Err: err}
	}
	pr := PullRequest{
		Repo:      repo,
		Number:    d.Number,
		Title:     d.Title,
		URL:       d.HTMLURL,
		State:     d.State,
		Draft:     d.Draft,
		Author:    d.User.Login,
		HeadSHA:   d.Head.SHA,
		HeadRef:   d.Head.Ref,
		BaseRef:   d.Base.Ref,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.MergedAt != nil {
		pr.State = "merged"
	}
	return pr, nil
}

type CopilotEventKind string

const (
	CopilotWorkStarted         CopilotEventKind = "copilot_work_started"
	CopilotWorkFinished        CopilotEventKind = "copilot_work_finished"
	CopilotWorkFinishedFailure CopilotEventKind = "copilot_work_finished_failure"
)

// CopilotEvent is a Copilot session boundary from a pull request timeline.
type CopilotEvent struct {
	Kind CopilotEventKind `json:"event"`
	At   time.Time        `json:"created_at"`
}

// CopilotEvents returns the Copilot session events of a pull request timeline
// in chronological order.
func (c *Client) CopilotEvents(ctx context.Context, pr PullRequest) ([]CopilotEvent, error) {
	out, err := c.gh(ctx, "api", "--paginate",
		fmt.Sprintf("repos/%s/issues/%d/timeline", pr.Repo, pr.Number),
		"--jq", `.[] | select(.event != null and (.event | startswith("copilot_work"))) | {event, created_at}`,
	)
	if err != nil {
		return nil, &LookupError{Item: pr.Key(), Op: "get timeline", Err: err}
	}
	events, err := decodeLines[CopilotEvent](out)
	if err != nil {
		return nil, &LookupError{Item: pr.Key(), Op: "parse timeline", Err: err}
	}
	return events, nil
}

// decodeLines decodes a stream of JSON values such as gh --jq output.
func decodeLines[T any](out []byte) ([]T, error) {
	dec := json.NewDecoder(strings.NewReader(string(out)))
	var items []T
	for dec.More() {
		var v T
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}
