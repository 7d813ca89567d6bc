package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/b5/squiggle/core"
)

func userSet(cmd *cobra.Command, args []string) error {
	ref, err := currentSpaceRef()
	if err != nil {
		return err
	}
	author, err := currentAuthor()
	if err != nil {
		return err
	}
	space, closer, err := openSpace(ref)
	if err != nil {
		return err
	}
	defer closer()

	acc, err := accounts.Current()
	if err != nil {
		return err
	}
	username, _ := cmd.Flags().GetString("username")
	description, _ := cmd.Flags().GetString("description")

	user, err := space.Users().Mutate(author, acc.ID, core.Profile{
		Username:    username,
		Description: description,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", user.DisplayName())
	return nil
}

func userGet(cmd *cobra.Command, args []string) error {
	ref, err := currentSpaceRef()
	if err != nil {
		return err
	}
	space, closer, err := openSpace(ref)
	if err != nil {
		return err
	}
	defer closer()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	user, err := space.Users().Get(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", user.ID, user.DisplayName())
	return nil
}

func userList(cmd *cobra.Command, _ []string) error {
	ref, err := currentSpaceRef()
	if err != nil {
		return err
	}
	space, closer, err := openSpace(ref)
	if err != nil {
		return err
	}
	defer closer()

	users, err := space.Users().List(0, 256)
	if err != nil {
		return err
	}
	for _, user := range users {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", user.ID, user.DisplayName())
	}
	return nil
}

var userCmd = &cobra.Command{
	Use:               "user",
	Short:             "manage the current space's users",
	PersistentPreRunE: nodeInit,
}

func init() {
	set := &cobra.Command{Use: "set", Short: "set the current account's profile in this space", RunE: userSet}
	set.Flags().String("username", "", "display name")
	set.Flags().String("description", "", "short bio")

	userCmd.AddCommand(
		set,
		&cobra.Command{Use: "get <id>", Args: cobra.ExactArgs(1), RunE: userGet},
		&cobra.Command{Use: "list", RunE: userList},
	)
}

var UserCmd = userCmd

func RegisterUser(root *cobra.Command) { root.AddCommand(UserCmd) }
