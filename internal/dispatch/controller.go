// Package dispatch feeds restart work to a single worker with admission
// control.
//
// Offline edges arrive from the liveness watcher faster and more often than
// accounts can be restarted, so the controller sits between them: a bounded
// FIFO queue drained by exactly one worker, with a double admission gate that
// rejects accounts already being processed and accounts that only just
// finished. Together the gates guarantee at most one in-flight run per
// account and a full cooldown window between the end of one run and the start
// of the next, even under bursty duplicate signals.
//
// Cooldown state is in-memory only. A controller restart forgets it, which
// can produce one early re-run after a crash; SeedOffline at startup is the
// compensating behavior for the work lost the same way.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/azminug/autorun/internal/identity"
)

const (
	// DefaultQueueCapacity bounds how many pending restarts can wait.
	DefaultQueueCapacity = 50

	// DefaultCooldown is the minimum gap between the end of one run and
	// the start of the next for the same account. It covers the window in
	// which a freshly launched account has not yet written its first
	// heartbeat and still looks offline.
	DefaultCooldown = 60 * time.Second

	// stopTimeout bounds how long Stop waits for an in-flight run.
	stopTimeout = 10 * time.Second
)

// RunFunc performs the actual account restart. It may block for minutes; an
// error or panic is the callback's way of signaling failure and is absorbed
// at the dispatch boundary.
type RunFunc func(username string, payload json.RawMessage) error

// FlagStore is the slice of the accounts store the controller uses to mark
// an account as being handled before its run starts.
type FlagStore interface {
	SetActive(username string, active bool) (bool, error)
}

// OfflineLister enumerates currently-offline accounts for bulk seeding.
type OfflineLister interface {
	OfflineAccounts(ctx context.Context) ([]string, error)
}

// Item is one queued restart request.
type Item struct {
	ID         string
	Username   string
	Payload    json.RawMessage
	EnqueuedAt time.Time
}

// Config tunes a Controller. Zero values fall back to defaults.
type Config struct {
	QueueCapacity int
	Cooldown      time.Duration

	// Flags, when set, has the account's restart flag cleared just before
	// its run starts, so external tooling does not pick it up as well.
	Flags FlagStore

	Logf func(format string, args ...interface{})
	Now  func() time.Time
}

// Controller owns the queue, the worker, and the admission bookkeeping.
type Controller struct {
	run      RunFunc
	queue    chan Item
	cooldown time.Duration
	flags    FlagStore
	logf     func(format string, args ...interface{})
	now      func() time.Time

	mu      sync.Mutex
	running map[string]struct{}
	lastRun map[string]time.Time
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a controller that hands admitted work to run.
func New(run RunFunc, cfg Config) *Controller {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...interface{}) {}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		run:      run,
		queue:    make(chan Item, cfg.QueueCapacity),
		cooldown: cfg.Cooldown,
		flags:    cfg.Flags,
		logf:     cfg.Logf,
		now:      cfg.Now,
		running:  make(map[string]struct{}),
		lastRun:  make(map[string]time.Time),
	}
}

// canAdmitLocked is the admission gate. Callers hold c.mu.
func (c *Controller) canAdmitLocked(username string) bool {
	if _, inFlight := c.running[username]; inFlight {
		return false
	}
	if last, ok := c.lastRun[username]; ok {
		if c.now().Sub(last) < c.cooldown {
			return false
		}
	}
	return true
}

// Enqueue requests a restart for username. Inadmissible requests and a full
// queue both drop the request rather than block: the caller is typically the
// liveness poll goroutine and must never stall. Returns whether the request
// was accepted.
func (c *Controller) Enqueue(username string, payload json.RawMessage) bool {
	username = identity.Normalize(username)
	if username == "" {
		return false
	}

	c.mu.Lock()
	admit := c.canAdmitLocked(username)
	c.mu.Unlock()
	if !admit {
		c.logf("dispatch: skipping %s (running or cooling down)", username)
		return false
	}

	item := Item{
		ID:         uuid.NewString(),
		Username:   username,
		Payload:    payload,
		EnqueuedAt: c.now(),
	}

	select {
	case c.queue <- item:
		c.logf("dispatch: queued %s", username)
		return true
	default:
		c.logf("dispatch: WARNING queue full (%d), dropping %s", cap(c.queue), username)
		return false
	}
}

// SeedOffline enqueues every currently-offline account. Called once at
// startup so a controller restart does not lose pending work.
func (c *Controller) SeedOffline(ctx context.Context, lister OfflineLister) (int, error) {
	offline, err := lister.OfflineAccounts(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, username := range offline {
		if c.Enqueue(username, nil) {
			queued++
		}
	}
	c.logf("dispatch: seeded %d of %d offline accounts", queued, len(offline))
	return queued, nil
}

// process runs one dequeued item through the gate and the callback.
// Admission is re-checked here because the world may have changed between
// enqueue and dequeue. The cooldown stamp is written whether the run
// succeeded or failed: a crashing callback must not be hammered in a loop.
func (c *Controller) process(item Item) {
	username := item.Username

	c.mu.Lock()
	if !c.canAdmitLocked(username) {
		c.mu.Unlock()
		c.logf("dispatch: skipping %s (state changed since enqueue)", username)
		return
	}
	c.running[username] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.running, username)
		c.lastRun[username] = c.now()
		c.mu.Unlock()
	}()

	if c.flags != nil {
		if _, err := c.flags.SetActive(username, false); err != nil {
			c.logf("dispatch: clearing flag for %s: %v", username, err)
		}
	}

	c.logf("dispatch: starting run for %s", username)
	if err := c.invoke(item); err != nil {
		c.logf("dispatch: run failed for %s: %v", username, err)
		return
	}
	c.logf("dispatch: finished run for %s", username)
}

// invoke calls the run callback, converting a panic into an error so one bad
// run can never kill the worker loop or strand the account in the running
// set.
func (c *Controller) invoke(item Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run callback panicked: %v", r)
		}
	}()
	return c.run(item.Username, item.Payload)
}

func (c *Controller) workerLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case item := <-c.queue:
			c.process(item)
		}
	}
}

// Start launches the single worker goroutine.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	c.wg.Add(1)
	go c.workerLoop()
}

// Stop signals the worker and waits for it with a bounded timeout. A run
// callback that outlives the timeout is abandoned, and that is logged.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		c.logf("dispatch: worker did not stop within %v, abandoning", stopTimeout)
	}
}

// QueueDepth returns how many requests are waiting.
func (c *Controller) QueueDepth() int {
	return len(c.queue)
}

// Running returns a sorted copy of the usernames currently being processed.
func (c *Controller) Running() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.running))
	for username := range c.running {
		out = append(out, username)
	}
	sort.Strings(out)
	return out
}

// IsRunning reports whether username is currently being processed.
func (c *Controller) IsRunning(username string) bool {
	username = identity.Normalize(username)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.running[username]
	return ok
}
