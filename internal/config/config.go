// Package config loads and saves the autorun configuration file.
//
// Configuration lives in a TOML file (autorun.toml by default). A missing file
// is not an error: Load returns the defaults, so a fresh checkout works with
// nothing but a remote URL flag.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/azminug/autorun/internal/util"
)

// ErrInvalid indicates a configuration value that fails validation.
var ErrInvalid = errors.New("invalid config")

// Duration wraps time.Duration so TOML files can use strings like "120s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration back to its string form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds everything the daemon and CLI need.
type Config struct {
	// RemoteURL is the base URL of the shared status store.
	RemoteURL string `toml:"remote_url"`

	// AccountsFile is the local flag file listing tracked accounts.
	AccountsFile string `toml:"accounts_file"`

	// StateDir holds daemon runtime files (lock, pid, state, logs).
	StateDir string `toml:"state_dir"`

	// RunCommand, when set, is executed for each account that needs a
	// restart, with the username appended as the final argument. The actual
	// launcher (browser automation etc.) lives outside this tool.
	RunCommand string `toml:"run_command"`

	PollInterval      Duration `toml:"poll_interval"`
	HeartbeatTimeout  Duration `toml:"heartbeat_timeout"`
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
	ReconcileInterval Duration `toml:"reconcile_interval"`
	RunCooldown       Duration `toml:"run_cooldown"`

	// QueueCapacity bounds the autorun dispatch queue.
	QueueCapacity int `toml:"queue_capacity"`

	DashboardHost string `toml:"dashboard_host"`
	DashboardPort int    `toml:"dashboard_port"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AccountsFile:      "accounts.json",
		StateDir:          ".autorun",
		PollInterval:      Duration{10 * time.Second},
		HeartbeatTimeout:  Duration{120 * time.Second},
		HeartbeatInterval: Duration{30 * time.Second},
		ReconcileInterval: Duration{60 * time.Second},
		RunCooldown:       Duration{60 * time.Second},
		QueueCapacity:     50,
		DashboardHost:     "127.0.0.1",
		DashboardPort:     8080,
	}
}

// Load reads the config file at path, applying defaults for anything unset.
// A missing file returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to path atomically.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return util.AtomicWriteFile(path, data, 0644)
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.PollInterval.Duration <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalid)
	}
	if c.HeartbeatTimeout.Duration <= 0 {
		return fmt.Errorf("%w: heartbeat_timeout must be positive", ErrInvalid)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue_capacity must be positive", ErrInvalid)
	}
	if c.RunCooldown.Duration < 0 {
		return fmt.Errorf("%w: run_cooldown must not be negative", ErrInvalid)
	}
	return nil
}
