// Package liveness watches the remote store and classifies accounts as
// online or offline.
//
// The store offers no change subscription, so the watcher polls: one bulk
// read per cycle, a fresh classification for every account, and edge-triggered
// callbacks when a classification flips between cycles. Classification is
// fail-closed: a record missing its presence data or carrying a stale
// heartbeat counts as offline, because silently treating a stalled account as
// alive would prevent it from ever being restarted.
package liveness

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/azminug/autorun/internal/identity"
	"github.com/azminug/autorun/internal/remote"
)

const (
	// DefaultPollInterval is how often the watcher re-reads the store.
	DefaultPollInterval = 10 * time.Second

	// DefaultHeartbeatTimeout is the maximum heartbeat age for an account
	// to still count as online.
	DefaultHeartbeatTimeout = 120 * time.Second

	// stopTimeout bounds how long Stop waits for the poll goroutine.
	stopTimeout = 5 * time.Second
)

// ObserverFunc receives edge notifications for a single account.
type ObserverFunc func(username string, data json.RawMessage)

// StatusFunc receives the generic status-changed notification.
type StatusFunc func(username string, online bool, data json.RawMessage)

// Config tunes a Watcher. Zero values fall back to defaults.
type Config struct {
	// Collection is the store path holding account records.
	Collection string

	PollInterval     time.Duration
	HeartbeatTimeout time.Duration

	// Logf receives diagnostic messages. Defaults to a no-op.
	Logf func(format string, args ...interface{})

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// presence is the heartbeat payload an account's own process writes into its
// remote record to prove recent liveness.
type presence struct {
	InGame    bool   `json:"inGame"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// Watcher polls the remote store and fires edge-triggered callbacks.
type Watcher struct {
	store      remote.Store
	collection string
	interval   time.Duration
	timeout    time.Duration
	logf       func(format string, args ...interface{})
	now        func() time.Time

	mu        sync.Mutex
	prev      map[string]bool
	onOffline []ObserverFunc
	onOnline  []ObserverFunc
	onChange  []StatusFunc
	started   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher over the given store.
func New(store remote.Store, cfg Config) *Watcher {
	if cfg.Collection == "" {
		cfg.Collection = "accounts"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...interface{}) {}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Watcher{
		store:      store,
		collection: cfg.Collection,
		interval:   cfg.PollInterval,
		timeout:    cfg.HeartbeatTimeout,
		logf:       cfg.Logf,
		now:        cfg.Now,
		prev:       make(map[string]bool),
	}
}

// OnOffline registers a callback fired when an account flips to offline.
func (w *Watcher) OnOffline(fn ObserverFunc) *Watcher {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onOffline = append(w.onOffline, fn)
	return w
}

// OnOnline registers a callback fired when an account flips to online.
func (w *Watcher) OnOnline(fn ObserverFunc) *Watcher {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onOnline = append(w.onOnline, fn)
	return w
}

// OnStatusChange registers a callback fired after any flip, in either
// direction, following the direction-specific callbacks.
func (w *Watcher) OnStatusChange(fn StatusFunc) *Watcher {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
	return w
}

// classify decides whether a single account record counts as online.
// Any missing or malformed field classifies the account offline.
func (w *Watcher) classify(data json.RawMessage) bool {
	if len(data) == 0 {
		return false
	}

	var rec struct {
		Presence *presence `json:"presence"`
	}
	if err := json.Unmarshal(data, &rec); err != nil || rec.Presence == nil {
		return false
	}

	p := rec.Presence
	if !p.InGame && !strings.EqualFold(p.Status, "online") {
		return false
	}
	if p.Timestamp <= 0 {
		return false
	}

	age := w.now().Unix() - p.Timestamp
	return age <= int64(w.timeout/time.Second)
}

// transition records one edge to fire after the state update completes.
type transition struct {
	username string
	online   bool
	data     json.RawMessage
}

// checkOnce performs one poll cycle: bulk read, classify, diff, notify.
// A failed fetch skips the cycle and retains the previous classifications; a
// single bad poll carries no information about any individual account.
func (w *Watcher) checkOnce(ctx context.Context) {
	all, err := w.store.GetAll(ctx, w.collection)
	if err != nil {
		w.logf("liveness: poll failed, keeping previous state: %v", err)
		return
	}

	current := make(map[string]bool, len(all))
	var edges []transition

	w.mu.Lock()
	for name, data := range all {
		username := identity.Normalize(name)
		if username == "" {
			continue
		}
		online := w.classify(data)
		current[username] = online

		if prev, seen := w.prev[username]; seen && prev != online {
			edges = append(edges, transition{username, online, data})
		}
	}
	w.prev = current
	offline := append([]ObserverFunc(nil), w.onOffline...)
	online := append([]ObserverFunc(nil), w.onOnline...)
	change := append([]StatusFunc(nil), w.onChange...)
	w.mu.Unlock()

	// Callbacks run outside the lock so observers may query the watcher.
	for _, e := range edges {
		if e.online {
			w.logf("liveness: %s came online", e.username)
			for _, fn := range online {
				w.safeCall("online", e.username, e.data, fn)
			}
		} else {
			w.logf("liveness: %s went offline", e.username)
			for _, fn := range offline {
				w.safeCall("offline", e.username, e.data, fn)
			}
		}
		for _, fn := range change {
			w.safeChangeCall(e, fn)
		}
	}
}

// safeCall invokes one observer, recovering a panic so a broken observer
// cannot block the others or kill the poll loop.
func (w *Watcher) safeCall(kind, username string, data json.RawMessage, fn ObserverFunc) {
	defer func() {
		if r := recover(); r != nil {
			w.logf("liveness: %s observer panicked for %s: %v", kind, username, r)
		}
	}()
	fn(username, data)
}

func (w *Watcher) safeChangeCall(e transition, fn StatusFunc) {
	defer func() {
		if r := recover(); r != nil {
			w.logf("liveness: status observer panicked for %s: %v", e.username, r)
		}
	}()
	fn(e.username, e.online, e.data)
}

// Classifications performs a fresh bulk classification of every account in
// the store. Safe to call whether or not the poll loop is running.
func (w *Watcher) Classifications(ctx context.Context) (map[string]bool, error) {
	all, err := w.store.GetAll(ctx, w.collection)
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(all))
	for name, data := range all {
		username := identity.Normalize(name)
		if username == "" {
			continue
		}
		out[username] = w.classify(data)
	}
	return out, nil
}

// Info is one account's classification plus the presence details behind it.
type Info struct {
	Online   bool
	Status   string
	LastSeen time.Time
}

// Infos performs a fresh bulk read returning classification and presence
// detail per account, for status displays.
func (w *Watcher) Infos(ctx context.Context) (map[string]Info, error) {
	all, err := w.store.GetAll(ctx, w.collection)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Info, len(all))
	for name, data := range all {
		username := identity.Normalize(name)
		if username == "" {
			continue
		}

		info := Info{Online: w.classify(data)}
		var rec struct {
			Presence *presence `json:"presence"`
		}
		if err := json.Unmarshal(data, &rec); err == nil && rec.Presence != nil {
			info.Status = rec.Presence.Status
			if rec.Presence.Timestamp > 0 {
				info.LastSeen = time.Unix(rec.Presence.Timestamp, 0)
			}
		}
		out[username] = info
	}
	return out, nil
}

// OnlineAccounts returns the usernames currently classified online, sorted.
func (w *Watcher) OnlineAccounts(ctx context.Context) ([]string, error) {
	return w.filtered(ctx, true)
}

// OfflineAccounts returns the usernames currently classified offline, sorted.
func (w *Watcher) OfflineAccounts(ctx context.Context) ([]string, error) {
	return w.filtered(ctx, false)
}

func (w *Watcher) filtered(ctx context.Context, wantOnline bool) ([]string, error) {
	classes, err := w.Classifications(ctx)
	if err != nil {
		return nil, err
	}

	var out []string
	for username, online := range classes {
		if online == wantOnline {
			out = append(out, username)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Status classifies a single account with a point read.
// known is false when the account has no remote record at all.
func (w *Watcher) Status(ctx context.Context, username string) (online, known bool, err error) {
	normalized := identity.Normalize(username)
	data, err := w.store.Get(ctx, w.collection+"/"+normalized)
	if err != nil {
		return false, false, err
	}
	if data == nil {
		return false, false, nil
	}
	return w.classify(data), true, nil
}

// Start runs one synchronous check, then begins polling in the background.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	w.checkOnce(w.ctx)

	w.wg.Add(1)
	go w.run()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.checkOnce(w.ctx)
		}
	}
}

// Stop cancels the poll loop and waits for it with a bounded timeout.
// Abandoning a loop that fails to stop is logged, never silent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		w.logf("liveness: poll loop did not stop within %v, abandoning", stopTimeout)
	}
}
