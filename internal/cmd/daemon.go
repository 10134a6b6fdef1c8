package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/azminug/autorun/internal/daemon"
	"github.com/azminug/autorun/internal/style"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the orchestration daemon",
	Long: `Run the long-lived orchestration process in the foreground.

The daemon polls the remote store for account heartbeats, keeps the local
restart flags in sync with observed presence, and dispatches restart runs
one at a time. Only one daemon may run per state directory.

Stop it with Ctrl-C or SIGTERM; the daemon withdraws its device record on
the way out.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(cfg, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("%s daemon running (log: %s)\n",
		style.ArrowPrefix, filepath.Join(cfg.StateDir, "daemon.log"))

	if err := d.Run(ctx); err != nil {
		return err
	}
	fmt.Printf("%s daemon stopped\n", style.SuccessPrefix)
	return nil
}
