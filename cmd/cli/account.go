package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/b5/squiggle/core"
)

func accountCreate(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	acc, _, err := accounts.Create(core.Profile{Username: username})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", acc.ID)
	return nil
}

func accountList(cmd *cobra.Command, _ []string) error {
	for _, acc := range accounts.List() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", acc.ID, acc.Profile.Username)
	}
	return nil
}

func accountUse(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid account id: %w", err)
	}
	return accounts.SetCurrent(id)
}

func accountWhoami(cmd *cobra.Command, _ []string) error {
	acc, err := accounts.Current()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", acc.ID, acc.Profile.Username)
	return nil
}

var accountCmd = &cobra.Command{
	Use:               "account",
	Short:             "manage local identities",
	PersistentPreRunE: nodeInit,
}

func init() {
	create := &cobra.Command{Use: "create", RunE: accountCreate}
	create.Flags().String("username", "", "display name for the new account")

	accountCmd.AddCommand(
		create,
		&cobra.Command{Use: "list", RunE: accountList},
		&cobra.Command{Use: "use <id>", Args: cobra.ExactArgs(1), RunE: accountUse},
		&cobra.Command{Use: "whoami", RunE: accountWhoami},
	)
}

var AccountCmd = accountCmd

func RegisterAccount(root *cobra.Command) { root.AddCommand(AccountCmd) }
