// Package keepalive provides the daemon's local liveness signal.
//
// The daemon touches a small JSON file on every heartbeat cycle; the status
// command reads it to tell a live daemon from a dead one without poking at
// process tables. Writes are best-effort and silently ignore errors: the
// signal is non-critical and a full disk must never take the daemon down.
//
// Read returns nil when the file is missing or unparseable, and State.Age
// accepts nil receivers, returning a sentinel of 365 days. "No signal" and
// "stale signal" therefore need no separate handling:
//
//	if keepalive.Read(dir).Age() > 2*interval { /* daemon looks dead */ }
package keepalive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const fileName = "keepalive.json"

// State is the keepalive file contents.
type State struct {
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Touch writes a fresh keepalive into dir, creating the directory if needed.
// Errors are silently ignored.
func Touch(dir, note string) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}

	data, err := json.Marshal(State{
		Note:      note,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	_ = os.WriteFile(filepath.Join(dir, fileName), data, 0644)
}

// Read returns the current keepalive state, or nil if the file is missing or
// unreadable. The result is safe to pass to Age without a nil check.
func Read(dir string) *State {
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		return nil
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil
	}
	return &state
}

// Age returns how old the signal is. A nil receiver reads as 365 days,
// older than any sensible staleness threshold.
func (s *State) Age() time.Duration {
	if s == nil {
		return 24 * time.Hour * 365
	}
	return time.Since(s.Timestamp)
}
