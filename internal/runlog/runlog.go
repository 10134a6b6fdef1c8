// Package runlog keeps a human-readable history of account lifecycle events.
//
// Every queue admission, run start, run outcome, and presence edge gets one
// line in run.log under the state directory. The file is append-only and
// meant for eyeballs, not parsing; the remote event log is the structured
// record.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType classifies a run log entry.
type EventType string

const (
	// EventQueued records an account admitted to the dispatch queue.
	EventQueued EventType = "queued"
	// EventStarted records the run callback beginning for an account.
	EventStarted EventType = "started"
	// EventFinished records a run callback returning without error.
	EventFinished EventType = "finished"
	// EventFailed records a run callback returning an error or panicking.
	EventFailed EventType = "failed"
	// EventOnline records an account transitioning to online.
	EventOnline EventType = "online"
	// EventOffline records an account transitioning to offline.
	EventOffline EventType = "offline"
	// EventSync records a reconciliation pass that changed local flags.
	EventSync EventType = "sync"
)

// Event is a single run log entry.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Account   string
	Context   string
}

// Logger appends events to the run log file.
type Logger struct {
	path string
	mu   sync.Mutex
}

const fileName = "run.log"

// NewLogger creates a Logger writing into stateDir.
func NewLogger(stateDir string) *Logger {
	return &Logger{path: filepath.Join(stateDir, fileName)}
}

// Path returns the log file location.
func (l *Logger) Path() string {
	return l.path
}

// Log appends an event with the current timestamp. Errors are silently
// ignored: the run log is non-critical and must never stall a run.
func (l *Logger) Log(eventType EventType, account, context string) {
	_ = l.Append(Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Account:   account,
		Context:   context,
	})
}

// Append writes one event to the log file.
func (l *Logger) Append(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(e) + "\n"); err != nil {
		return fmt.Errorf("writing run log: %w", err)
	}
	return nil
}

// formatLine renders an event as a log line.
// Format: 2026-08-25 15:30:45 [queued] coolguy42 seeded at startup
func formatLine(e Event) string {
	ts := e.Timestamp.Format("2006-01-02 15:04:05")

	var detail string
	switch e.Type {
	case EventQueued:
		detail = "queued for restart"
	case EventStarted:
		detail = "run started"
	case EventFinished:
		detail = "run finished"
	case EventFailed:
		detail = "run failed"
	case EventOnline:
		detail = "came online"
	case EventOffline:
		detail = "went offline"
	case EventSync:
		detail = "flags reconciled"
	default:
		detail = string(e.Type)
	}
	if e.Context != "" {
		detail += fmt.Sprintf(" (%s)", e.Context)
	}

	if e.Account == "" {
		return fmt.Sprintf("%s [%s] %s", ts, e.Type, detail)
	}
	return fmt.Sprintf("%s [%s] %s %s", ts, e.Type, e.Account, detail)
}

// Tail returns the last n lines of the run log, oldest first. A missing file
// yields an empty slice.
func (l *Logger) Tail(n int) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading run log: %w", err)
	}

	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, string(data[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}

	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
