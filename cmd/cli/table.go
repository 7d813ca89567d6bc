package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func tableCreate(cmd *cobra.Command, args []string) error {
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

	schemaJSON, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	table, err := space.Tables().Mutate(author, uuid.New(), schemaJSON)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%x\n", table.ID, table.SchemaHash[:8])
	return nil
}

func tableGet(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("invalid table id: %w", err)
	}
	table, err := space.Tables().Get(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", table.SchemaJSON)
	return nil
}

func tableList(cmd *cobra.Command, _ []string) error {
	ref, err := currentSpaceRef()
	if err != nil {
		return err
	}
	space, closer, err := openSpace(ref)
	if err != nil {
		return err
	}
	defer closer()

	tables, err := space.Tables().List(0, 256)
	if err != nil {
		return err
	}
	for _, table := range tables {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%x\n", table.ID, table.SchemaHash[:8])
	}
	return nil
}

func tableDelete(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("invalid table id: %w", err)
	}
	return space.Tables().Delete(author, id)
}

var tableCmd = &cobra.Command{
	Use:               "table",
	Short:             "manage the current space's JSON-schema tables",
	PersistentPreRunE: nodeInit,
}

func init() {
	tableCmd.AddCommand(
		&cobra.Command{Use: "create <schema.json>", Args: cobra.ExactArgs(1), RunE: tableCreate},
		&cobra.Command{Use: "get <id>", Args: cobra.ExactArgs(1), RunE: tableGet},
		&cobra.Command{Use: "list", RunE: tableList},
		&cobra.Command{Use: "delete <id>", Args: cobra.ExactArgs(1), RunE: tableDelete},
	)
}

var TableCmd = tableCmd

func RegisterTable(root *cobra.Command) { root.AddCommand(TableCmd) }
