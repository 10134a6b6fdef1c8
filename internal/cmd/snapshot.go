package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/azminug/autorun/internal/accounts"
	"github.com/azminug/autorun/internal/hostid"
	"github.com/azminug/autorun/internal/identity"
	"github.com/azminug/autorun/internal/keepalive"
	"github.com/azminug/autorun/internal/liveness"
	"github.com/azminug/autorun/internal/remote"
	"github.com/azminug/autorun/internal/web"
)

// buildSnapshot assembles the fleet status document shared by the status
// command, the dashboard, and the HTTP server: remote presence joined with
// the local roster plus daemon liveness.
func buildSnapshot(ctx context.Context) (*web.Snapshot, error) {
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("remote_url is not configured")
	}

	client := remote.NewClient(cfg.RemoteURL)
	watcher := liveness.New(client, liveness.Config{
		HeartbeatTimeout: cfg.HeartbeatTimeout.Duration,
	})
	infos, err := watcher.Infos(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading remote presence: %w", err)
	}

	roster, err := accounts.NewStore(cfg.AccountsFile).Load()
	if err != nil {
		return nil, err
	}

	id, err := hostid.Load(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	signal := keepalive.Read(cfg.StateDir)
	age := signal.Age()

	snap := &web.Snapshot{
		Hostname:    hostname,
		MachineID:   id.ID,
		GeneratedAt: time.Now(),
		DaemonAlive: age <= 2*cfg.HeartbeatInterval.Duration,
		DaemonAge:   age.Seconds(),
	}

	// Local roster rows carry the stored spelling; remote-only accounts
	// (watched but not in the roster) follow under their normalized name.
	seen := make(map[string]bool, len(roster))
	for _, a := range roster {
		key := identity.Normalize(a.Username)
		seen[key] = true
		info := infos[key]
		snap.Accounts = append(snap.Accounts, web.AccountStatus{
			Username: a.Username,
			Active:   a.Active,
			Online:   info.Online,
			Status:   info.Status,
			LastSeen: info.LastSeen,
		})
	}
	for key, info := range infos {
		if seen[key] {
			continue
		}
		snap.Accounts = append(snap.Accounts, web.AccountStatus{
			Username: key,
			Online:   info.Online,
			Status:   info.Status,
			LastSeen: info.LastSeen,
		})
	}

	sort.Slice(snap.Accounts, func(i, j int) bool {
		return identity.Normalize(snap.Accounts[i].Username) <
			identity.Normalize(snap.Accounts[j].Username)
	})

	for _, a := range snap.Accounts {
		if a.Online {
			snap.Counts.Online++
		} else {
			snap.Counts.Offline++
		}
		if a.Active {
			snap.Counts.Flagged++
		}
	}

	return snap, nil
}
