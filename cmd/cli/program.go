package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func programCreate(cmd *cobra.Command, args []string) error {
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

	program, err := space.Programs().Mutate(author, uuid.New(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s v%s\n", program.ID, program.Manifest.Name, program.Manifest.Version)
	return nil
}

func programGet(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("invalid program id: %w", err)
	}
	program, err := space.Programs().Get(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s v%s\n", program.ID, program.Manifest.Name, program.Manifest.Version)
	return nil
}

func programList(cmd *cobra.Command, _ []string) error {
	ref, err := currentSpaceRef()
	if err != nil {
		return err
	}
	space, closer, err := openSpace(ref)
	if err != nil {
		return err
	}
	defer closer()

	programs, err := space.Programs().List(0, 256)
	if err != nil {
		return err
	}
	for _, program := range programs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s v%s\n", program.ID, program.Manifest.Name, program.Manifest.Version)
	}
	return nil
}

func programDelete(cmd *cobra.Command, args []string) error {
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

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid program id: %w", err)
	}
	return space.Programs().Delete(author, id)
}

var programCmd = &cobra.Command{
	Use:               "program",
	Short:             "manage the current space's WASM program bundles",
	PersistentPreRunE: nodeInit,
}

func init() {
	programCmd.AddCommand(
		&cobra.Command{Use: "create <directory>", Args: cobra.ExactArgs(1), RunE: programCreate},
		&cobra.Command{Use: "get <id>", Args: cobra.ExactArgs(1), RunE: programGet},
		&cobra.Command{Use: "list", RunE: programList},
		&cobra.Command{Use: "delete <id>", Args: cobra.ExactArgs(1), RunE: programDelete},
	)
}

var ProgramCmd = programCmd

func RegisterProgram(root *cobra.Command) { root.AddCommand(ProgramCmd) }
