package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/azminug/autorun/internal/daemon"
	"github.com/azminug/autorun/internal/style"
	"github.com/azminug/autorun/internal/ui"
	"github.com/azminug/autorun/internal/web"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"stat"},
	Short:   "Show daemon and fleet status",
	Long: `Display the daemon's health and every account's presence.

The daemon section comes from local state files; the fleet section queries
the remote store directly, so it works even when the daemon is down.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(statusCmd)
}

// statusReport is the JSON shape of the status command.
type statusReport struct {
	Daemon *daemon.State `json:"daemon,omitempty"`
	Fleet  *web.Snapshot `json:"fleet,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	state := daemon.LoadState(cfg.StateDir)
	snap, snapErr := buildSnapshot(cmd.Context())

	if statusJSON {
		if snapErr != nil {
			return snapErr
		}
		out, err := json.MarshalIndent(statusReport{Daemon: state, Fleet: snap}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	printDaemonSection(state, snap)
	fmt.Println()

	if snapErr != nil {
		style.PrintWarning("fleet status unavailable: %v", snapErr)
		return nil
	}
	printFleetSection(snap)
	return nil
}

func printDaemonSection(state *daemon.State, snap *web.Snapshot) {
	fmt.Println(ui.RenderCategory("daemon"))

	alive := snap != nil && snap.DaemonAlive
	switch {
	case alive && state != nil:
		fmt.Printf("  %s running (pid %d, %d heartbeats, up since %s)\n",
			style.SuccessPrefix, state.PID, state.HeartbeatCount,
			state.StartedAt.Format("2006-01-02 15:04"))
	case alive:
		fmt.Printf("  %s running\n", style.SuccessPrefix)
	case state != nil && state.Running:
		// The state file says running but the keepalive is stale.
		fmt.Printf("  %s stale (last heartbeat %s)\n",
			style.WarningPrefix, state.LastHeartbeat.Format(time.RFC3339))
	default:
		fmt.Printf("  %s not running\n", style.ErrorPrefix)
	}
}

func printFleetSection(snap *web.Snapshot) {
	fmt.Println(ui.RenderCategory("fleet"))

	if len(snap.Accounts) == 0 {
		fmt.Println("  no accounts tracked")
		return
	}

	table := style.NewTable(
		style.Column{Name: "", Width: 1},
		style.Column{Name: "ACCOUNT", Width: 20},
		style.Column{Name: "STATE", Width: 8},
		style.Column{Name: "FLAG", Width: 8},
		style.Column{Name: "LAST SEEN", Width: 16},
	)
	for _, a := range snap.Accounts {
		state := "offline"
		if a.Online {
			state = "online"
		}
		flag := ""
		if a.Active {
			flag = "restart"
		}
		table.AddRow(ui.RenderStateIcon(state), a.Username,
			ui.RenderState(state), flag, renderLastSeen(a.LastSeen))
	}
	fmt.Print(table.Render())

	fmt.Printf("\n  %s  %s  %s\n",
		ui.RenderPass(fmt.Sprintf("%d online", snap.Counts.Online)),
		ui.RenderFail(fmt.Sprintf("%d offline", snap.Counts.Offline)),
		ui.RenderMuted(fmt.Sprintf("%d flagged for restart", snap.Counts.Flagged)))
}

func renderLastSeen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return t.Format("2006-01-02")
	}
}

// exitOnMissingRemote is a shared guard for commands that cannot degrade.
func exitOnMissingRemote() error {
	if cfg.RemoteURL == "" {
		fmt.Fprintf(os.Stderr, "%s remote_url is not configured (set it in %s)\n",
			style.ErrorPrefix, configPath)
		return fmt.Errorf("remote_url is not configured")
	}
	return nil
}
