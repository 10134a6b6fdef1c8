package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/azminug/autorun/internal/tui/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"dash"},
	Short:   "Live terminal view of the fleet",
	Long: `Open a full-screen terminal dashboard showing every account's
presence, refreshed every few seconds from the remote store.

Quit with q or Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if err := exitOnMissingRemote(); err != nil {
		return err
	}

	p := tea.NewProgram(dashboard.New(buildSnapshot), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
