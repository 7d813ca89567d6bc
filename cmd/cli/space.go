package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/b5/squiggle/core"
)

func spaceCreate(cmd *cobra.Command, args []string) error {
	name := args[0]
	author, err := currentAuthor()
	if err != nil {
		return err
	}

	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return fmt.Errorf("generate space secret: %w", err)
	}
	id := uuid.New()
	ref := core.SpaceRef{ID: id, Name: name, Secret: hex.EncodeToString(secret[:])}

	space, closer, err := openSpace(&ref)
	if err != nil {
		return err
	}
	defer closer()

	if _, err := space.SpaceMeta().Mutate(author, core.SpaceDetails{
		ID:     id,
		Name:   name,
		Secret: ref.Secret,
	}); err != nil {
		return err
	}
	if err := spaces.Register(ref); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", id)
	return nil
}

func spaceList(cmd *cobra.Command, _ []string) error {
	for _, ref := range spaces.List() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ref.ID, ref.Name)
	}
	return nil
}

func spaceUse(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid space id: %w", err)
	}
	if _, err := spaces.Get(id); err != nil {
		return err
	}
	currentSpaceIDOverride = id
	return nil
}

func spaceForget(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid space id: %w", err)
	}
	return spaces.Forget(id)
}

func spaceExport(cmd *cobra.Command, _ []string) error {
	ref, err := currentSpaceRef()
	if err != nil {
		return err
	}
	space, closer, err := openSpace(ref)
	if err != nil {
		return err
	}
	defer closer()

	sharing := core.NewSharing(cfg.ListenAddr, log)
	ticket, err := sharing.Export(space)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", ticket.Encode())
	return nil
}

func spaceImport(cmd *cobra.Command, args []string) error {
	ticket, err := core.DecodeTicket(args[0])
	if err != nil {
		return err
	}
	blobs, err := core.NewLocalBlobStore(cfg.BlobDir())
	if err != nil {
		return err
	}
	codec := core.NewEventCodec()
	space, err := core.NewSharing(cfg.ListenAddr, log).Import(cmd.Context(), ticket, blobs, spaces, cfg.DataRoot, codec, log)
	if err != nil {
		return err
	}
	if space == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "merged into existing local space")
		return nil
	}
	defer space.Close()
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", space.ID)
	return nil
}

var spaceCmd = &cobra.Command{
	Use:               "space",
	Short:             "manage local spaces",
	PersistentPreRunE: nodeInit,
}

func init() {
	spaceCmd.PersistentFlags().String("space", "", "space id to operate on (defaults to the only known space)")
	spaceCmd.AddCommand(
		&cobra.Command{Use: "create <name>", Args: cobra.ExactArgs(1), RunE: spaceCreate},
		&cobra.Command{Use: "list", RunE: spaceList},
		&cobra.Command{Use: "use <id>", Args: cobra.ExactArgs(1), RunE: spaceUse},
		&cobra.Command{Use: "forget <id>", Args: cobra.ExactArgs(1), RunE: spaceForget},
		&cobra.Command{Use: "export", RunE: spaceExport},
		&cobra.Command{Use: "import <ticket>", Args: cobra.ExactArgs(1), RunE: spaceImport},
	)
}

var SpaceCmd = spaceCmd

func RegisterSpace(root *cobra.Command) { root.AddCommand(SpaceCmd) }
