package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/azminug/autorun/internal/accounts"
	"github.com/azminug/autorun/internal/identity"
	"github.com/azminug/autorun/internal/style"
)

var accountsCmd = &cobra.Command{
	Use:     "accounts",
	Aliases: []string{"acc"},
	Short:   "Manage the tracked account roster",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add an account to the roster",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsAdd,
}

var accountsRemoveCmd = &cobra.Command{
	Use:     "remove <username>",
	Aliases: []string{"rm"},
	Short:   "Remove an account from the roster",
	Args:    cobra.ExactArgs(1),
	RunE:    runAccountsRemove,
}

var accountsActivateCmd = &cobra.Command{
	Use:   "activate <username>",
	Short: "Flag an account for restart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountActive(args[0], true)
	},
}

var accountsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <username>",
	Short: "Clear an account's restart flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountActive(args[0], false)
	},
}

func init() {
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
	accountsCmd.AddCommand(accountsActivateCmd)
	accountsCmd.AddCommand(accountsDeactivateCmd)
	rootCmd.AddCommand(accountsCmd)
}

func rosterStore() *accounts.Store {
	return accounts.NewStore(cfg.AccountsFile)
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	list, err := rosterStore().Load()
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No accounts tracked. Add one with: autorun accounts add <username>")
		return nil
	}

	table := style.NewTable(
		style.Column{Name: "ACCOUNT", Width: 24},
		style.Column{Name: "FLAG", Width: 10},
	)
	flagged := 0
	for _, a := range list {
		flag := ""
		if a.Active {
			flag = "restart"
			flagged++
		}
		table.AddRow(a.Username, flag)
	}
	fmt.Print(table.Render())
	fmt.Printf("\n  %d account(s), %d flagged for restart\n", len(list), flagged)
	return nil
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	username := args[0]
	if identity.Normalize(username) == "" {
		return fmt.Errorf("empty username")
	}

	added := false
	err := rosterStore().Mutate(func(list []accounts.Account) ([]accounts.Account, bool) {
		for _, a := range list {
			if a.Matches(username) {
				return list, false
			}
		}
		added = true
		return append(list, accounts.Account{Username: username}), true
	})
	if err != nil {
		return err
	}

	if !added {
		style.PrintWarning("%s is already tracked", username)
		return nil
	}
	fmt.Printf("%s added %s\n", style.SuccessPrefix, username)
	return nil
}

func runAccountsRemove(cmd *cobra.Command, args []string) error {
	username := args[0]

	removed := false
	err := rosterStore().Mutate(func(list []accounts.Account) ([]accounts.Account, bool) {
		out := list[:0]
		for _, a := range list {
			if a.Matches(username) {
				removed = true
				continue
			}
			out = append(out, a)
		}
		return out, removed
	})
	if err != nil {
		return err
	}

	if !removed {
		return fmt.Errorf("account %q is not tracked", username)
	}
	fmt.Printf("%s removed %s\n", style.SuccessPrefix, username)
	return nil
}

func setAccountActive(username string, active bool) error {
	found, err := rosterStore().SetActive(username, active)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("account %q is not tracked", username)
	}

	if active {
		fmt.Printf("%s %s flagged for restart\n", style.SuccessPrefix, username)
	} else {
		fmt.Printf("%s %s restart flag cleared\n", style.SuccessPrefix, username)
	}
	return nil
}
