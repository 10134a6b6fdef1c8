// Package hostid provides a stable identity for this machine.
//
// The identity is a random UUID minted on first use and persisted in the
// state directory, not derived from hardware. It keys this machine's records
// in the remote device collection; deleting the file simply mints a new
// device.
package hostid

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/azminug/autorun/internal/util"
)

const fileName = "machine-id.json"

// Identity is the persisted machine identity.
type Identity struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Load reads the machine identity from stateDir, minting and persisting a
// new one if none exists yet.
func Load(stateDir string) (*Identity, error) {
	path := filepath.Join(stateDir, fileName)

	data, err := os.ReadFile(path)
	if err == nil {
		var id Identity
		if jsonErr := json.Unmarshal(data, &id); jsonErr == nil && id.ID != "" {
			return &id, nil
		}
		// Corrupt file: fall through and mint a fresh identity.
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading machine id: %w", err)
	}

	id := &Identity{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	if err := util.AtomicWriteJSON(path, id); err != nil {
		return nil, fmt.Errorf("writing machine id: %w", err)
	}
	return id, nil
}

// Info returns descriptive facts about this machine for the remote device
// record.
func Info() map[string]string {
	hostname, _ := os.Hostname()
	return map[string]string{
		"hostname": hostname,
		"os":       runtime.GOOS,
		"arch":     runtime.GOARCH,
	}
}
