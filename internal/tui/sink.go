package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcin-skalski/copilot-monitor/internal/monitor"
)

const sinkBuffer = 1024

// Sink forwards monitor output to a running program in call order. Calls
// made before Attach are queued.
type Sink struct {
	msgs chan tea.Msg
}

func NewSink() *Sink {
	return &Sink{msgs: make(chan tea.Msg, sinkBuffer)}
}

// Attach starts delivering queued and future messages to p. After p exits
// messages are discarded.
func (s *Sink) Attach(p *tea.Program) {
	go func() {
		for msg := range s.msgs {
			p.Send(msg)
		}
	}()
}

func (s *Sink) Snapshot(items []monitor.ItemStatus) {
	s.msgs <- snapshotMsg(append([]monitor.ItemStatus(nil), items...))
}

func (s *Sink) ItemUpdated(it monitor.ItemStatus) {
	s.msgs <- itemMsg(it)
}

func (s *Sink) Status(st monitor.AggregateStatus) {
	s.msgs <- statusMsg(st)
}

// Log drops the line when the queue is full so logging never blocks.
func (s *Sink) Log(line string) {
	select {
	case s.msgs <- logMsg(line):
	default:
	}
}
