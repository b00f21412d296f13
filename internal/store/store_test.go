package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func session(key string, start time.Time, d time.Duration) Session {
	return Session{
		ItemKey:   key,
		Repo:      "acme/api",
		Number:    1,
		StartedAt: start,
		EndedAt:   start.Add(d),
		Duration:  d,
		Outcome:   OutcomeFinished,
	}
}

func TestNewCreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "sessions.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestRecordSessionIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	isNew, err := s.RecordSession(ctx, session("acme/api#1", start, 10*time.Minute))
	if err != nil {
		t.Fatalf("RecordSession failed: %v", err)
	}
	if !isNew {
		t.Fatal("first insert should be new")
	}

	isNew, err = s.RecordSession(ctx, session("acme/api#1", start, 10*time.Minute))
	if err != nil {
		t.Fatalf("RecordSession failed: %v", err)
	}
	if isNew {
		t.Fatal("duplicate insert should be ignored")
	}

	total, err := s.TotalDuration(ctx)
	if err != nil {
		t.Fatalf("TotalDuration failed: %v", err)
	}
	if total != 10*time.Minute {
		t.Errorf("Expected 10m total, got %s", total)
	}
}

func TestTotalDurationSumsSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	total, err := s.TotalDuration(ctx)
	if err != nil {
		t.Fatalf("TotalDuration failed: %v", err)
	}
	if total != 0 {
		t.Errorf("Expected empty store to total 0, got %s", total)
	}

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, d := range []time.Duration{time.Minute, 2 * time.Minute, 1500 * time.Millisecond} {
		if _, err := s.RecordSession(ctx, session("acme/api#1", start.Add(time.Duration(i)*time.Hour), d)); err != nil {
			t.Fatalf("RecordSession failed: %v", err)
		}
	}
	total, err = s.TotalDuration(ctx)
	if err != nil {
		t.Fatalf("TotalDuration failed: %v", err)
	}
	if want := 3*time.Minute + 1500*time.Millisecond; total != want {
		t.Errorf("Expected %s, got %s", want, total)
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := s.RecordSession(ctx, session("acme/api#1", start, time.Minute)); err != nil {
		t.Fatal(err)
	}
	later := session("acme/api#2", start.Add(time.Hour), 5*time.Minute)
	later.Outcome = OutcomeFailed
	if _, err := s.RecordSession(ctx, later); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(all))
	}
	if all[0].ItemKey != "acme/api#2" || all[0].Outcome != OutcomeFailed {
		t.Errorf("Unexpected first session: %+v", all[0])
	}
	if all[0].ID == "" {
		t.Error("Session ID should be assigned")
	}
	if !all[1].StartedAt.Equal(start) || all[1].Duration != time.Minute {
		t.Errorf("Round trip mismatch: %+v", all[1])
	}

	limited, err := s.ListSessions(ctx, 1)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected limit to apply, got %d sessions", len(limited))
	}
}

func TestRecordSessionClampsNegativeDuration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := s.RecordSession(ctx, session("acme/api#1", start, -time.Minute)); err != nil {
		t.Fatal(err)
	}
	total, err := s.TotalDuration(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("Expected negative duration to be stored as 0, got %s", total)
	}
}
