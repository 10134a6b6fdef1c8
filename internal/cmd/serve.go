package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/azminug/autorun/internal/style"
	"github.com/azminug/autorun/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve fleet status over HTTP",
	Long: `Run a read-only HTTP server that answers with the fleet status as
JSON. Useful for wall dashboards and scripts on other machines.

Endpoints:
  GET /         full status snapshot
  GET /healthz  liveness probe`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"Listen address (defaults to dashboard_host:dashboard_port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := exitOnMissingRemote(); err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.DashboardHost, cfg.DashboardPort)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("%s serving status on http://%s\n", style.ArrowPrefix, addr)

	logf := func(format string, a ...interface{}) {
		fmt.Printf(format+"\n", a...)
	}
	return web.New(buildSnapshot, logf).ListenAndServe(ctx, addr)
}
