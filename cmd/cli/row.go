package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func rowSet(cmd *cobra.Command, args []string) error {
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

	schemaHashHex, _ := cmd.Flags().GetString("table")
	sch, err := decodeHashFlag(schemaHashHex)
	if err != nil {
		return err
	}

	valueJSON, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read row value file: %w", err)
	}
	if !json.Valid(valueJSON) {
		return fmt.Errorf("row value file is not valid JSON")
	}

	row, err := space.Rows().Mutate(author, uuid.New(), sch, valueJSON)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", row.ID)
	return nil
}

func rowGet(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("invalid row id: %w", err)
	}
	row, err := space.Rows().Get(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", row.Content)
	return nil
}

func rowQuery(cmd *cobra.Command, args []string) error {
	ref, err := currentSpaceRef()
	if err != nil {
		return err
	}
	space, closer, err := openSpace(ref)
	if err != nil {
		return err
	}
	defer closer()

	schemaHashHex, _ := cmd.Flags().GetString("table")
	sch, err := decodeHashFlag(schemaHashHex)
	if err != nil {
		return err
	}
	rows, err := space.Rows().Query(sch, 0, 256)
	if err != nil {
		return err
	}
	for _, row := range rows {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", row.ID, row.Content)
	}
	return nil
}

func rowDelete(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("invalid row id: %w", err)
	}
	schemaHashHex, _ := cmd.Flags().GetString("table")
	sch, err := decodeHashFlag(schemaHashHex)
	if err != nil {
		return err
	}
	return space.Rows().Delete(author, id, sch)
}

var rowCmd = &cobra.Command{
	Use:               "row",
	Short:             "manage schema-validated row instances",
	PersistentPreRunE: nodeInit,
}

func init() {
	set := &cobra.Command{Use: "set <value.json>", Args: cobra.ExactArgs(1), RunE: rowSet}
	set.Flags().String("table", "", "hex schema hash of the owning table")

	query := &cobra.Command{Use: "query", RunE: rowQuery}
	query.Flags().String("table", "", "hex schema hash to query")

	del := &cobra.Command{Use: "delete <id>", Args: cobra.ExactArgs(1), RunE: rowDelete}
	del.Flags().String("table", "", "hex schema hash of the owning table")

	rowCmd.AddCommand(
		set,
		&cobra.Command{Use: "get <id>", Args: cobra.ExactArgs(1), RunE: rowGet},
		query,
		del,
	)
}

var RowCmd = rowCmd

func RegisterRow(root *cobra.Command) { root.AddCommand(RowCmd) }
