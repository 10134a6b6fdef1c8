package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/azminug/autorun/internal/util"
)

// State is the daemon's runtime state file, written on every heartbeat so
// the status command can report what the daemon is doing without IPC.
type State struct {
	Running        bool      `json:"running"`
	PID            int       `json:"pid"`
	StartedAt      time.Time `json:"started_at"`
	LastHeartbeat  time.Time `json:"last_heartbeat"`
	HeartbeatCount int64     `json:"heartbeat_count"`
}

const stateFileName = "state.json"

func statePath(stateDir string) string {
	return filepath.Join(stateDir, stateFileName)
}

// Save writes the state atomically into stateDir.
func (s *State) Save(stateDir string) error {
	return util.AtomicWriteJSON(statePath(stateDir), s)
}

// LoadState returns the persisted daemon state, or nil if the file is
// missing or unreadable.
func LoadState(stateDir string) *State {
	data, err := os.ReadFile(statePath(stateDir))
	if err != nil {
		return nil
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	return &s
}
