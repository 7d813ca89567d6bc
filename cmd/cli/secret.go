package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// parseKVPairs parses "key=value" flag values into a map, the shape the
// worker's host ABI expects program config to arrive in.
func parseKVPairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("malformed key=value pair %q", p)
		}
		out[k] = v
	}
	return out, nil
}

func secretSet(cmd *cobra.Command, args []string) error {
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

	programID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid program id: %w", err)
	}
	pairs, _ := cmd.Flags().GetStringArray("set")
	values, err := parseKVPairs(pairs)
	if err != nil {
		return err
	}
	_, err = space.Secrets().Mutate(author, programID, values)
	return err
}

func secretGet(cmd *cobra.Command, args []string) error {
	ref, err := currentSpaceRef()
	if err != nil {
		return err
	}
	space, closer, err := openSpace(ref)
	if err != nil {
		return err
	}
	defer closer()

	programID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid program id: %w", err)
	}
	secret, err := space.Secrets().Get(programID)
	if err != nil {
		return err
	}
	for k, v := range secret.Values {
		fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, v)
	}
	return nil
}

var secretCmd = &cobra.Command{
	Use:               "secret",
	Short:             "manage per-program configuration, never exported by space share",
	PersistentPreRunE: nodeInit,
}

func init() {
	set := &cobra.Command{Use: "set <program-id>", Args: cobra.ExactArgs(1), RunE: secretSet}
	set.Flags().StringArray("set", nil, "key=value pair, repeatable")

	secretCmd.AddCommand(
		set,
		&cobra.Command{Use: "get <program-id>", Args: cobra.ExactArgs(1), RunE: secretGet},
	)
}

var SecretCmd = secretCmd

func RegisterSecret(root *cobra.Command) { root.AddCommand(SecretCmd) }
