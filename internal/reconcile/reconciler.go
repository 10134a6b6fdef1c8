// Package reconcile keeps the local flag file in agreement with the remote
// classification of each account.
//
// The rules are deliberately asymmetric: a flag only flips when the remote
// store gives a concrete reason. An account that is online gets its restart
// flag cleared; an account that is offline gets it set; an account the remote
// store has never heard of is left exactly as it was, because its desired
// state is unknown, not assumed. This keeps sparse remote data from making
// the flags oscillate.
package reconcile

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/azminug/autorun/internal/accounts"
	"github.com/azminug/autorun/internal/identity"
)

// Classifier is the slice of the liveness watcher the reconciler needs.
// Both methods perform fresh bulk classifications; the remote view may change
// between the two calls and reconciliation tolerates that.
type Classifier interface {
	OnlineAccounts(ctx context.Context) ([]string, error)
	OfflineAccounts(ctx context.Context) ([]string, error)
}

// Stats describes reconciliation history for status reporting.
type Stats struct {
	LastSync  time.Time `json:"last_sync"`
	SyncCount int       `json:"sync_count"`
}

// Reconciler syncs remote classifications into the local flag file.
type Reconciler struct {
	store   *accounts.Store
	watcher Classifier
	logf    func(format string, args ...interface{})

	mu    sync.Mutex
	stats Stats
}

// New creates a reconciler over the given flag store and classifier.
func New(store *accounts.Store, watcher Classifier, logf func(format string, args ...interface{})) *Reconciler {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Reconciler{store: store, watcher: watcher, logf: logf}
}

// ReconcileOnce runs one full pass. It returns how many records were flagged
// for restart (went offline) and how many were cleared (came online).
// A remote query failure aborts the pass without touching any flag.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (setActive, setInactive int, err error) {
	online, err := r.watcher.OnlineAccounts(ctx)
	if err != nil {
		return 0, 0, err
	}
	offline, err := r.watcher.OfflineAccounts(ctx)
	if err != nil {
		return 0, 0, err
	}

	onlineSet := toSet(online)
	offlineSet := toSet(offline)

	err = r.store.Mutate(func(list []accounts.Account) ([]accounts.Account, bool) {
		changed := false
		for i := range list {
			username := identity.Normalize(list[i].Username)

			switch {
			case onlineSet[username] && list[i].Active:
				// Online means already running, nothing to restart.
				list[i].Active = false
				setInactive++
				changed = true
			case offlineSet[username] && !list[i].Active:
				list[i].Active = true
				setActive++
				changed = true
			}
			// Absent from the remote store entirely: leave untouched.
		}
		return list, changed
	})
	if err != nil {
		return 0, 0, err
	}

	r.mu.Lock()
	r.stats.LastSync = time.Now()
	r.stats.SyncCount++
	r.mu.Unlock()

	if setActive > 0 || setInactive > 0 {
		r.logf("reconcile: %d flagged for restart, %d cleared", setActive, setInactive)
	}
	return setActive, setInactive, nil
}

// AccountsNeedingRestart returns every local record whose username is not
// currently classified online. This is fresher and stricter than the
// persisted flag and is what dispatch decisions should trust; the flag file
// is a durable hint for external tooling.
func (r *Reconciler) AccountsNeedingRestart(ctx context.Context) ([]accounts.Account, error) {
	list, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	online, err := r.watcher.OnlineAccounts(ctx)
	if err != nil {
		return nil, err
	}
	onlineSet := toSet(online)

	var out []accounts.Account
	for _, acc := range list {
		if !onlineSet[identity.Normalize(acc.Username)] {
			out = append(out, acc)
		}
	}
	return out, nil
}

// HandleOffline is registered as a watcher observer: an offline edge flags
// the account for restart immediately, without waiting for the next pass.
func (r *Reconciler) HandleOffline(username string, _ json.RawMessage) {
	if _, err := r.store.SetActive(username, true); err != nil {
		r.logf("reconcile: flagging %s for restart: %v", username, err)
	}
}

// HandleOnline is registered as a watcher observer: an online edge clears
// the restart flag.
func (r *Reconciler) HandleOnline(username string, _ json.RawMessage) {
	if _, err := r.store.SetActive(username, false); err != nil {
		r.logf("reconcile: clearing restart flag for %s: %v", username, err)
	}
}

// Stats returns a copy of the reconciliation counters.
func (r *Reconciler) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
