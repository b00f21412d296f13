package monitor

import (
	"sort"

	"github.com/marcin-skalski/copilot-monitor/internal/activity"
	"github.com/marcin-skalski/copilot-monitor/internal/github"
)

// Class decides how often a pull request is refreshed.
type Class string

const (
	ClassActive Class = "active"
	ClassStable Class = "stable"
)

// Classify marks a pull request active while Copilot or CI is working on it.
func Classify(state activity.State, runs []github.WorkflowRun) Class {
	switch state {
	case activity.StateCopilotWorking, activity.StateAutoFixInProgress, activity.StateCIRunning:
		return ClassActive
	}
	for _, r := range runs {
		if r.Status == github.RunInProgress || r.Status == github.RunQueued {
			return ClassActive
		}
	}
	return ClassStable
}

// Partition holds every tracked key in exactly one class.
type Partition struct {
	classes map[string]Class
	counts  map[Class]int
}

func NewPartition() *Partition {
	return &Partition{classes: make(map[string]Class), counts: make(map[Class]int)}
}

// Set moves key into class c.
func (p *Partition) Set(key string, c Class) {
	if old, ok := p.classes[key]; ok {
		p.counts[old]--
	}
	p.classes[key] = c
	p.counts[c]++
}

func (p *Partition) Remove(key string) {
	if old, ok := p.classes[key]; ok {
		p.counts[old]--
		delete(p.classes, key)
	}
}

// Count returns the number of keys in class c.
func (p *Partition) Count(c Class) int {
	return p.counts[c]
}

func (p *Partition) Class(key string) (Class, bool) {
	c, ok := p.classes[key]
	return c, ok
}

// Active returns the active keys in sorted order.
func (p *Partition) Active() []string {
	return p.keys(ClassActive)
}

// Stable returns the stable keys in sorted order.
func (p *Partition) Stable() []string {
	return p.keys(ClassStable)
}

func (p *Partition) Len() int {
	return len(p.classes)
}

func (p *Partition) keys(c Class) []string {
	var keys []string
	for k, kc := range p.classes {
		if kc == c {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
