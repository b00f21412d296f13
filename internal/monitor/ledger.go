package monitor

import (
	"fmt"
	"time"
)

// Ledger accounts for Copilot session time across all monitored pull
// requests.
type Ledger struct {
	// Historical is the time recorded by earlier runs.
	Historical time.Duration
	// Completed is the time of sessions first seen ending during this run.
	Completed time.Duration

	live map[string]time.Time
	// settling is ended session time awaiting Settle. It counts toward Total.
	settling time.Duration
}

func NewLedger(historical time.Duration) *Ledger {
	if historical < 0 {
		historical = 0
	}
	return &Ledger{Historical: historical, live: make(map[string]time.Time)}
}

// Start marks a session on key as live from at. A second start for the same
// key replaces the first.
func (l *Ledger) Start(key string, at time.Time) {
	l.live[key] = at
}

// End stops the live session on key and returns its start and clamped
// duration. ok is false when no session was live. Every ended session must
// be passed to Settle exactly once.
func (l *Ledger) End(key string, at time.Time) (start time.Time, elapsed time.Duration, ok bool) {
	start, ok = l.live[key]
	if !ok {
		return time.Time{}, 0, false
	}
	delete(l.live, key)
	elapsed = clampElapsed(start, at)
	l.settling += elapsed
	return start, elapsed, true
}

// Settle resolves an ended session. counted is false when the session was
// already part of Historical.
func (l *Ledger) Settle(d time.Duration, counted bool) {
	if d <= 0 {
		return
	}
	l.settling -= d
	if l.settling < 0 {
		l.settling = 0
	}
	if counted {
		l.Completed += d
	}
}

func (l *Ledger) IsLive(key string) bool {
	_, ok := l.live[key]
	return ok
}

// Live returns the number of live sessions.
func (l *Ledger) Live() int {
	return len(l.live)
}

// Total is the displayed session time at now.
func (l *Ledger) Total(now time.Time) time.Duration {
	total := l.Historical + l.Completed + l.settling
	for _, start := range l.live {
		total += clampElapsed(start, now)
	}
	return total
}

func clampElapsed(start, now time.Time) time.Duration {
	if now.Before(start) {
		return 0
	}
	return now.Sub(start)
}

// FormatSessionTime renders d as zero-padded HH:MM:SS. Hours are not wrapped
// at 24.
func FormatSessionTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}
