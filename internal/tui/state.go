package tui

import (
	"sort"

	"github.com/marcin-skalski/copilot-monitor/internal/monitor"
)

// Messages the Sink feeds into the program.
type (
	snapshotMsg []monitor.ItemStatus
	itemMsg     monitor.ItemStatus
	statusMsg   monitor.AggregateStatus
	logMsg      string
)

const maxLogLines = 5

// board is the viewer's copy of the monitored pull requests.
type board struct {
	items  []monitor.ItemStatus
	status monitor.AggregateStatus
	logs   []string
}

// replace swaps the whole list, as after a sync pass.
func (b *board) replace(items []monitor.ItemStatus) {
	b.items = append([]monitor.ItemStatus(nil), items...)
}

// upsert updates an item in place or appends it.
func (b *board) upsert(it monitor.ItemStatus) {
	for i := range b.items {
		if b.items[i].Key == it.Key {
			b.items[i] = it
			return
		}
	}
	b.items = append(b.items, it)
}

func (b *board) log(line string) {
	b.logs = append(b.logs, line)
	if len(b.logs) > maxLogLines {
		b.logs = b.logs[len(b.logs)-maxLogLines:]
	}
}

type repoGroup struct {
	repo  string
	items []monitor.ItemStatus
}

// groups returns items grouped by repository, repositories sorted by name
// and items by number.
func (b *board) groups() []repoGroup {
	byRepo := make(map[string][]monitor.ItemStatus)
	for _, it := range b.items {
		byRepo[it.Repo] = append(byRepo[it.Repo], it)
	}
	out := make([]repoGroup, 0, len(byRepo))
	for repo, items := range byRepo {
		sort.Slice(items, func(i, j int) bool { return items[i].Number < items[j].Number })
		out = append(out, repoGroup{repo: repo, items: items})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].repo < out[j].repo })
	return out
}

// ordered flattens groups into display order, which selection indexes into.
func (b *board) ordered() []monitor.ItemStatus {
	var out []monitor.ItemStatus
	for _, g := range b.groups() {
		out = append(out, g.items...)
	}
	return out
}
