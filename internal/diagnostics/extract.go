package diagnostics

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	ansiRe      = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	timestampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?Z ?`)

	// src/a.ts(10,5): error TS2345: message
	compilerRe = regexp.MustCompile(`^\s*([^\s(][^()]*?)\((\d+),(\d+)\):\s+(error|warning)\s+([A-Za-z]+\d+):\s*(.*)$`)

	// A bare path on its own line opens an eslint "stylish" block.
	linterHeaderRe = regexp.MustCompile(`^(?:[A-Za-z]:)?[\\/]?(?:[^\s\\/:]+[\\/])+[^\s\\/:]+\.[A-Za-z0-9]+$`)
	linterRowRe    = regexp.MustCompile(`^\s+(\d+):(\d+)\s+(error|warning|warn)\s+(.+?)\s{2,}(\S+)\s*$`)
	linterBareRe   = regexp.MustCompile(`^\s+(\d+):(\d+)\s+(error|warning|warn)\s+(.+?)\s*$`)

	testMarkerRe = regexp.MustCompile(`^\s*●\s+(.+?)\s*$`)

	packageManagerRe = regexp.MustCompile(`^\s*(?:npm ERR!|npm error|ERR_PNPM_[A-Z0-9_]+|error Command failed)`)

	// ERROR in ./src/index.ts 3:0-28
	bundlerRe = regexp.MustCompile(`^(ERROR|WARNING) in (\S+)(?:\s+(\d+):(\d+)(?:-\d+)?)?\s*$`)

	annotationRe = regexp.MustCompile(`^##\[(error|warning)\](.*)$`)
)

type recognizer func(lines []string, job string) []Record

var recognizers = []recognizer{
	recognizeCompiler,
	recognizeLinter,
	recognizeTestRunner,
	recognizePackageManager,
	recognizeBundler,
	recognizeAnnotations,
}

// Extract runs every recognizer over raw and collects their records in log
// order. Lines no recognizer understands are skipped.
func Extract(raw, job string) *Result {
	lines := normalize(raw)
	var records []Record
	for _, rec := range recognizers {
		records = append(records, rec(lines, job)...)
	}
	return newResult(job, records)
}

func normalize(raw string) []string {
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		l = ansiRe.ReplaceAllString(l, "")
		l = timestampRe.ReplaceAllString(l, "")
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return lines
}

func recognizeCompiler(lines []string, job string) []Record {
	var out []Record
	for i, l := range lines {
		m := compilerRe.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		out = append(out, Record{
			Tool:     ToolCompiler,
			Severity: severityOf(m[4]),
			File:     strings.TrimSpace(m[1]),
			Line:     atoi(m[2]),
			Column:   atoi(m[3]),
			Code:     m[5],
			Message:  strings.TrimSpace(m[6]),
			Job:      job,
			Index:    i,
		})
	}
	return out
}

func recognizeLinter(lines []string, job string) []Record {
	var out []Record
	file := ""
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			file = ""
			continue
		}
		if linterHeaderRe.MatchString(l) {
			file = l
			continue
		}
		if file == "" {
			continue
		}
		rec := Record{Tool: ToolLinter, File: file, Job: job, Index: i}
		if m := linterRowRe.FindStringSubmatch(l); m != nil {
			rec.Line, rec.Column = atoi(m[1]), atoi(m[2])
			rec.Severity = severityOf(m[3])
			rec.Message = m[4]
			rec.Rule = m[5]
		} else if m := linterBareRe.FindStringSubmatch(l); m != nil {
			rec.Line, rec.Column = atoi(m[1]), atoi(m[2])
			rec.Severity = severityOf(m[3])
			rec.Message = m[4]
		} else {
			file = ""
			continue
		}
		out = append(out, rec)
	}
	return out
}

func recognizeTestRunner(lines []string, job string) []Record {
	var out []Record
	for i := 0; i < len(lines); i++ {
		m := testMarkerRe.FindStringSubmatch(lines[i])
		if m == nil || strings.HasPrefix(m[1], "Console") {
			continue
		}
		msg := m[1]
		for j := i + 1; j < len(lines); j++ {
			if testMarkerRe.MatchString(lines[j]) {
				break
			}
			if detail := strings.TrimSpace(lines[j]); detail != "" {
				msg += ": " + detail
				break
			}
		}
		out = append(out, Record{
			Tool:     ToolTestRunner,
			Severity: SeverityError,
			Message:  msg,
			Job:      job,
			Index:    i,
		})
	}
	return out
}

func recognizePackageManager(lines []string, job string) []Record {
	var out []Record
	for i, l := range lines {
		if !packageManagerRe.MatchString(l) {
			continue
		}
		out = append(out, Record{
			Tool:     ToolPackageManager,
			Severity: SeverityError,
			Message:  strings.TrimSpace(l),
			Job:      job,
			Index:    i,
		})
	}
	return out
}

func recognizeBundler(lines []string, job string) []Record {
	var out []Record
	for i, l := range lines {
		m := bundlerRe.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		rec := Record{
			Tool:     ToolBundler,
			Severity: severityOf(strings.ToLower(m[1])),
			File:     strings.TrimPrefix(m[2], "./"),
			Line:     atoi(m[3]),
			Column:   atoi(m[4]),
			Message:  strings.TrimSpace(l),
			Job:      job,
			Index:    i,
		}
		// webpack columns are 0-based.
		if m[4] != "" {
			rec.Column++
		}
		for j := i + 1; j < len(lines); j++ {
			if bundlerRe.MatchString(lines[j]) {
				break
			}
			if detail := strings.TrimSpace(lines[j]); detail != "" {
				rec.Message = detail
				break
			}
		}
		out = append(out, rec)
	}
	return out
}

func recognizeAnnotations(lines []string, job string) []Record {
	var out []Record
	for i, l := range lines {
		m := annotationRe.FindStringSubmatch(strings.TrimLeft(l, " \t"))
		if m == nil {
			continue
		}
		out = append(out, Record{
			Tool:     ToolCIAnnotation,
			Severity: severityOf(m[1]),
			Message:  strings.TrimSpace(m[2]),
			Job:      job,
			Index:    i,
		})
	}
	return out
}

func severityOf(token string) Severity {
	switch token {
	case "error":
		return SeverityError
	case "warning", "warn":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
