package runlog

import (
	"strings"
	"testing"
	"time"
)

func TestAppendAndTail(t *testing.T) {
	l := NewLogger(t.TempDir())

	l.Log(EventQueued, "coolguy42", "seeded at startup")
	l.Log(EventStarted, "coolguy42", "")
	l.Log(EventFinished, "coolguy42", "")

	lines, err := l.Tail(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[queued] coolguy42") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[0], "(seeded at startup)") {
		t.Errorf("context missing from %q", lines[0])
	}
	if !strings.Contains(lines[2], "run finished") {
		t.Errorf("last line = %q", lines[2])
	}
}

func TestTailLimit(t *testing.T) {
	l := NewLogger(t.TempDir())
	for i := 0; i < 5; i++ {
		l.Log(EventOnline, "alice", "")
	}

	lines, err := l.Tail(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Errorf("got %d lines, want 2", len(lines))
	}
}

func TestTailMissingFile(t *testing.T) {
	l := NewLogger(t.TempDir())

	lines, err := l.Tail(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 0 {
		t.Errorf("expected no lines, got %v", lines)
	}
}

func TestFormatLine(t *testing.T) {
	ts := time.Date(2026, 8, 25, 15, 30, 45, 0, time.UTC)

	got := formatLine(Event{Timestamp: ts, Type: EventOffline, Account: "bob"})
	want := "2026-08-25 15:30:45 [offline] bob went offline"
	if got != want {
		t.Errorf("formatLine = %q, want %q", got, want)
	}

	got = formatLine(Event{Timestamp: ts, Type: EventSync, Context: "2 flagged"})
	if !strings.Contains(got, "[sync] flags reconciled (2 flagged)") {
		t.Errorf("accountless line = %q", got)
	}
}
