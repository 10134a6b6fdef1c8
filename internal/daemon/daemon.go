// Package daemon ties the watcher, reconciler, and dispatch controller into
// the long-running orchestration process.
//
// One daemon runs per machine, enforced with a file lock in the state
// directory. The daemon announces the machine in the remote device
// collection, heartbeats it on a fixed interval, and reconciles local
// restart flags against observed presence until stopped.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/azminug/autorun/internal/accounts"
	"github.com/azminug/autorun/internal/config"
	"github.com/azminug/autorun/internal/dispatch"
	"github.com/azminug/autorun/internal/hostid"
	"github.com/azminug/autorun/internal/keepalive"
	"github.com/azminug/autorun/internal/liveness"
	"github.com/azminug/autorun/internal/reconcile"
	"github.com/azminug/autorun/internal/remote"
	"github.com/azminug/autorun/internal/runlog"
)

const (
	lockFileName = "daemon.lock"
	pidFileName  = "daemon.pid"
	logFileName  = "daemon.log"

	// lockTimeout bounds how long startup waits for the singleton lock.
	lockTimeout = 2 * time.Second

	// shutdownTimeout bounds the remote offline announcement on exit.
	shutdownTimeout = 5 * time.Second
)

// Daemon is the assembled orchestration process.
type Daemon struct {
	cfg      *config.Config
	client   *remote.Client
	status   remote.StatusWriter
	accounts *accounts.Store
	watcher  *liveness.Watcher
	reconcil *reconcile.Reconciler
	control  *dispatch.Controller
	identity *hostid.Identity
	events   *runlog.Logger

	logger  *log.Logger
	logFile *os.File

	startedAt  time.Time
	heartbeats int64
}

// New assembles a daemon from the given config. run performs the actual
// account restart; pass nil to launch cfg.RunCommand (or, with no command
// configured, to only log what would have run).
func New(cfg *config.Config, run dispatch.RunFunc) (*Daemon, error) {
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("remote_url is not configured")
	}
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.StateDir, logFileName),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening daemon log: %w", err)
	}
	logger := log.New(logFile, "", log.LstdFlags)

	identity, err := hostid.Load(cfg.StateDir)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	client := remote.NewClient(cfg.RemoteURL)
	store := accounts.NewStore(cfg.AccountsFile)
	events := runlog.NewLogger(cfg.StateDir)

	d := &Daemon{
		cfg:      cfg,
		client:   client,
		status:   client,
		accounts: store,
		identity: identity,
		events:   events,
		logger:   logger,
		logFile:  logFile,
	}

	d.watcher = liveness.New(client, liveness.Config{
		PollInterval:     cfg.PollInterval.Duration,
		HeartbeatTimeout: cfg.HeartbeatTimeout.Duration,
		Logf:             logger.Printf,
	})
	d.reconcil = reconcile.New(store, d.watcher, logger.Printf)

	if run == nil {
		run = d.commandRun()
	}
	d.control = dispatch.New(d.instrument(run), dispatch.Config{
		QueueCapacity: cfg.QueueCapacity,
		Cooldown:      cfg.RunCooldown.Duration,
		Flags:         store,
		Logf:          logger.Printf,
	})

	d.wireObservers()
	return d, nil
}

// wireObservers connects presence edges to the reconciler, the dispatch
// queue, and the event logs.
func (d *Daemon) wireObservers() {
	d.watcher.OnOffline(d.reconcil.HandleOffline)
	d.watcher.OnOnline(d.reconcil.HandleOnline)

	d.watcher.OnOffline(func(username string, data json.RawMessage) {
		d.events.Log(runlog.EventOffline, username, "")
		if d.control.Enqueue(username, data) {
			d.events.Log(runlog.EventQueued, username, "went offline")
		}
	})
	d.watcher.OnOnline(func(username string, _ json.RawMessage) {
		d.events.Log(runlog.EventOnline, username, "")
	})
}

// commandRun builds the restart callback from cfg.RunCommand. With no
// command configured the callback only logs, which keeps the daemon useful
// for monitoring-only deployments.
func (d *Daemon) commandRun() dispatch.RunFunc {
	if d.cfg.RunCommand == "" {
		return func(username string, _ json.RawMessage) error {
			d.logger.Printf("no run_command configured, skipping restart of %s", username)
			return nil
		}
	}

	parts := strings.Fields(d.cfg.RunCommand)
	return func(username string, _ json.RawMessage) error {
		args := append(append([]string(nil), parts[1:]...), username)
		cmd := exec.Command(parts[0], args...)
		cmd.Stdout = d.logFile
		cmd.Stderr = d.logFile
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("run command for %s: %w", username, err)
		}
		return nil
	}
}

// instrument wraps the restart callback with run log and remote event
// reporting. Remote reporting is best-effort.
func (d *Daemon) instrument(run dispatch.RunFunc) dispatch.RunFunc {
	return func(username string, payload json.RawMessage) error {
		d.events.Log(runlog.EventStarted, username, "")
		d.logRemoteEvent("run_started", username)

		err := run(username, payload)
		if err != nil {
			d.events.Log(runlog.EventFailed, username, err.Error())
			d.logRemoteEvent("run_failed", username)
			return err
		}

		d.events.Log(runlog.EventFinished, username, "")
		d.logRemoteEvent("run_finished", username)
		return nil
	}
}

func (d *Daemon) logRemoteEvent(kind, username string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.status.LogEvent(ctx, kind, map[string]interface{}{
		"username": username,
		"machine":  d.identity.ID,
	}); err != nil {
		d.logger.Printf("remote event %s for %s not recorded: %v", kind, username, err)
	}
}

// Run starts the daemon and blocks until ctx is canceled. It returns an
// error if another daemon already holds the state directory.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.logFile.Close()

	lock := flock.New(filepath.Join(d.cfg.StateDir, lockFileName))
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	locked, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	cancel()
	if err != nil {
		return fmt.Errorf("acquiring daemon lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another daemon is already running in %s", d.cfg.StateDir)
	}
	defer func() { _ = lock.Unlock() }()

	pidPath := filepath.Join(d.cfg.StateDir, pidFileName)
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d.startedAt = time.Now()
	d.logger.Printf("daemon starting (machine %s, pid %d)", d.identity.ID, os.Getpid())

	if err := d.status.SetDeviceOnline(ctx, d.identity.ID, hostid.Info()); err != nil {
		// The remote store may be down; keep going and let the heartbeat
		// announce us once it recovers.
		d.logger.Printf("announcing device online: %v", err)
	}

	d.watcher.Start()
	d.control.Start()

	if n, err := d.control.SeedOffline(ctx, d.watcher); err != nil {
		d.logger.Printf("seeding offline accounts: %v", err)
	} else if n > 0 {
		d.logger.Printf("seeded %d offline account(s) at startup", n)
	}

	d.reconcileTick(ctx)
	d.heartbeat(ctx)

	heartbeatTicker := time.NewTicker(d.cfg.HeartbeatInterval.Duration)
	defer heartbeatTicker.Stop()
	reconcileTicker := time.NewTicker(d.cfg.ReconcileInterval.Duration)
	defer reconcileTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return nil
		case <-heartbeatTicker.C:
			d.heartbeat(ctx)
		case <-reconcileTicker.C:
			d.reconcileTick(ctx)
		}
	}
}

// heartbeat refreshes the device record, the keepalive file, and the state
// file. All three are best-effort.
func (d *Daemon) heartbeat(ctx context.Context) {
	d.heartbeats++

	active, err := d.accounts.Active()
	if err != nil {
		d.logger.Printf("reading accounts for heartbeat: %v", err)
	}

	if err := d.status.TouchDevice(ctx, d.identity.ID, len(active)); err != nil {
		d.logger.Printf("device heartbeat: %v", err)
	}

	keepalive.Touch(d.cfg.StateDir, fmt.Sprintf("heartbeat #%d", d.heartbeats))

	state := &State{
		Running:        true,
		PID:            os.Getpid(),
		StartedAt:      d.startedAt,
		LastHeartbeat:  time.Now(),
		HeartbeatCount: d.heartbeats,
	}
	if err := state.Save(d.cfg.StateDir); err != nil {
		d.logger.Printf("saving daemon state: %v", err)
	}
}

// reconcileTick runs one reconciliation pass and logs a fleet summary.
func (d *Daemon) reconcileTick(ctx context.Context) {
	setActive, setInactive, err := d.reconcil.ReconcileOnce(ctx)
	if err != nil {
		d.logger.Printf("reconcile skipped: %v", err)
		return
	}
	if setActive > 0 || setInactive > 0 {
		d.events.Log(runlog.EventSync, "",
			fmt.Sprintf("%d flagged, %d cleared", setActive, setInactive))
	}

	online, err := d.watcher.OnlineAccounts(ctx)
	if err != nil {
		return
	}
	offline, _ := d.watcher.OfflineAccounts(ctx)
	d.logger.Printf("fleet: %d online, %d offline, %d queued, %d running",
		len(online), len(offline), d.control.QueueDepth(), len(d.control.Running()))
}

// shutdown stops the workers and withdraws the device record.
func (d *Daemon) shutdown() {
	d.logger.Printf("daemon stopping")

	d.control.Stop()
	d.watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.status.SetDeviceOffline(ctx, d.identity.ID); err != nil {
		d.logger.Printf("announcing device offline: %v", err)
	}

	state := &State{
		Running:        false,
		PID:            os.Getpid(),
		StartedAt:      d.startedAt,
		LastHeartbeat:  time.Now(),
		HeartbeatCount: d.heartbeats,
	}
	if err := state.Save(d.cfg.StateDir); err != nil {
		d.logger.Printf("saving daemon state: %v", err)
	}

	d.logger.Printf("daemon stopped")
}
