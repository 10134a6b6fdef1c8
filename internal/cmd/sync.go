package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/azminug/autorun/internal/accounts"
	"github.com/azminug/autorun/internal/liveness"
	"github.com/azminug/autorun/internal/reconcile"
	"github.com/azminug/autorun/internal/remote"
	"github.com/azminug/autorun/internal/style"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile local restart flags against remote presence",
	Long: `Run one reconciliation pass immediately.

Accounts observed online get their restart flag cleared; accounts observed
offline get it set. Accounts with no remote record are left untouched. This
is the same pass the daemon runs on its own interval.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := exitOnMissingRemote(); err != nil {
		return err
	}

	client := remote.NewClient(cfg.RemoteURL)
	watcher := liveness.New(client, liveness.Config{
		HeartbeatTimeout: cfg.HeartbeatTimeout.Duration,
	})
	store := accounts.NewStore(cfg.AccountsFile)

	setActive, setInactive, err := reconcile.New(store, watcher, nil).ReconcileOnce(cmd.Context())
	if err != nil {
		return err
	}

	if setActive == 0 && setInactive == 0 {
		fmt.Printf("%s flags already in sync\n", style.SuccessPrefix)
		return nil
	}
	fmt.Printf("%s %d account(s) flagged for restart, %d cleared\n",
		style.SuccessPrefix, setActive, setInactive)
	return nil
}
