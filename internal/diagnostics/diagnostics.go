// Package diagnostics extracts structured errors and warnings from raw CI job
// logs produced by compilers, linters, test runners, package managers,
// bundlers and the GitHub Actions runner itself.
package diagnostics

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Tool identifies the recognizer that produced a record.
type Tool string

const (
	ToolCompiler       Tool = "compiler"
	ToolLinter         Tool = "linter"
	ToolTestRunner     Tool = "test-runner"
	ToolPackageManager Tool = "package-manager"
	ToolBundler        Tool = "bundler"
	ToolCIAnnotation   Tool = "ci-annotation"
)

// toolRank orders tools by how actionable their output is, lowest first.
var toolRank = map[Tool]int{
	ToolCompiler:       0,
	ToolLinter:         1,
	ToolTestRunner:     2,
	ToolBundler:        3,
	ToolPackageManager: 4,
	ToolCIAnnotation:   5,
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

var severityRank = map[Severity]int{
	SeverityError:   0,
	SeverityWarning: 1,
	SeverityInfo:    2,
}

// Record is one diagnostic found in a log. Line and Column are 1-based; zero
// means the tool did not report one.
type Record struct {
	Tool     Tool
	Severity Severity
	File     string
	Line     int
	Column   int
	Code     string
	Rule     string
	Message  string
	Job      string
	// Index is the 0-based log line the record was read from.
	Index int
}

// Location renders file:line:column, omitting missing parts.
func (r Record) Location() string {
	if r.File == "" {
		return ""
	}
	switch {
	case r.Line > 0 && r.Column > 0:
		return fmt.Sprintf("%s:%d:%d", r.File, r.Line, r.Column)
	case r.Line > 0:
		return fmt.Sprintf("%s:%d", r.File, r.Line)
	default:
		return r.File
	}
}

// Result holds every record extracted from one job log.
type Result struct {
	Job     string
	Records []Record
	ByTool  map[Tool][]Record
	// ByFile only contains records that carry a file.
	ByFile map[string][]Record
}

func newResult(job string, records []Record) *Result {
	sort.SliceStable(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	r := &Result{
		Job:     job,
		Records: records,
		ByTool:  make(map[Tool][]Record),
		ByFile:  make(map[string][]Record),
	}
	for _, rec := range records {
		r.ByTool[rec.Tool] = append(r.ByTool[rec.Tool], rec)
		if rec.File != "" {
			r.ByFile[rec.File] = append(r.ByFile[rec.File], rec)
		}
	}
	return r
}

// Prioritized returns the records ordered by severity, then tool
// actionability. Ties keep log order.
func (r *Result) Prioritized() []Record {
	out := make([]Record, len(r.Records))
	copy(out, r.Records)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := severityRank[out[i].Severity], severityRank[out[j].Severity]
		if si != sj {
			return si < sj
		}
		return toolRank[out[i].Tool] < toolRank[out[j].Tool]
	})
	return out
}

// Counts returns the number of records per severity.
func (r *Result) Counts() map[Severity]int {
	counts := make(map[Severity]int)
	for _, rec := range r.Records {
		counts[rec.Severity]++
	}
	return counts
}

// Summary is a one-line description of the result. It is never empty.
func (r *Result) Summary() string {
	job := r.Job
	if job == "" {
		job = "log"
	}
	if len(r.Records) == 0 {
		return fmt.Sprintf("%s: no diagnostics found", job)
	}

	counts := r.Counts()
	var parts []string
	for _, sev := range []Severity{SeverityError, SeverityWarning, SeverityInfo} {
		if n := counts[sev]; n > 0 {
			parts = append(parts, plural(n, string(sev)))
		}
	}

	var tools []string
	for _, t := range sortedTools(r.ByTool) {
		tools = append(tools, string(t))
	}
	return fmt.Sprintf("%s: %s (%s) from %s",
		job, plural(len(r.Records), "diagnostic"), strings.Join(parts, ", "), strings.Join(tools, ", "))
}

// Markdown renders up to limit prioritized records as a bullet list. A limit
// of zero or less renders every record.
func (r *Result) Markdown(limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", r.Summary())
	records := r.Prioritized()
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	for _, rec := range records {
		b.WriteString("- ")
		if loc := rec.Location(); loc != "" {
			fmt.Fprintf(&b, "`%s` ", loc)
		}
		if rec.Code != "" {
			fmt.Fprintf(&b, "%s ", rec.Code)
		}
		b.WriteString(rec.Message)
		if rec.Rule != "" {
			fmt.Fprintf(&b, " (%s)", rec.Rule)
		}
		fmt.Fprintf(&b, " [%s %s]\n", rec.Tool, rec.Severity)
	}
	if n := len(r.Records) - len(records); n > 0 {
		fmt.Fprintf(&b, "- … and %d more\n", n)
	}
	return b.String()
}

func sortedTools(byTool map[Tool][]Record) []Tool {
	tools := make([]Tool, 0, len(byTool))
	for t := range byTool {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return toolRank[tools[i]] < toolRank[tools[j]] })
	return tools
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// IgnoreList matches job names against glob patterns (path.Match syntax,
// case-insensitive).
type IgnoreList []string

// Ignores reports whether job matches any pattern. Malformed patterns only
// match exactly.
func (l IgnoreList) Ignores(job string) bool {
	name := strings.ToLower(job)
	for _, p := range l {
		pattern := strings.ToLower(p)
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
		if pattern == name {
			return true
		}
	}
	return false
}
