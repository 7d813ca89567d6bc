// Package cli implements the spacenet command-line surface: one file per
// domain noun, following the package-level lazily initialized singleton
// behind a PersistentPreRunE hook convention used throughout this package.
package cli

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/b5/squiggle/core"
)

var (
	cfg       core.NodeConfig
	log       *logrus.Logger
	accounts  *core.Accounts
	spaces    *core.SpaceRegistry
	nodeOnce  sync.Once
	nodeErr   error
)

// nodeInit opens the on-disk roster files shared by every subcommand. The
// opening runs once per process regardless of how many PersistentPreRunE
// chains reach it; a --space flag, on commands that define one, selects the
// space currentSpaceID returns.
func nodeInit(cmd *cobra.Command, _ []string) error {
	nodeOnce.Do(func() {
		configPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, nodeErr = core.LoadConfig(configPath)
		if nodeErr != nil {
			return
		}
		if nodeErr = cfg.EnsureDataRoot(); nodeErr != nil {
			return
		}
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			level = logrus.InfoLevel
		}
		log = core.NewLogger(level)
		if accounts, nodeErr = core.OpenAccounts(cfg.AccountsPath(), cfg.AppStatePath()); nodeErr != nil {
			return
		}
		if spaces, nodeErr = core.OpenSpaceRegistry(cfg.SpacesPath()); nodeErr != nil {
			return
		}
	})
	if nodeErr != nil {
		return nodeErr
	}
	if s, err := cmd.Flags().GetString("space"); err == nil && s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid --space id: %w", err)
		}
		currentSpaceIDOverride = id
	}
	return nil
}

// currentAuthor resolves the selected account's signing key, or an error
// naming `account create` as the fix.
func currentAuthor() (ed25519.PrivateKey, error) {
	acc, err := accounts.Current()
	if err != nil {
		return nil, fmt.Errorf("no current account selected; run `spacenet account create` first: %w", err)
	}
	if acc.Author == nil {
		return nil, fmt.Errorf("account %s has no local signing key", acc.ID)
	}
	return acc.Author, nil
}

// currentSpaceRef resolves the registry entry for the currently selected
// space, or an error asking for --space when currentSpaceID cannot pick one.
func currentSpaceRef() (*core.SpaceRef, error) {
	id, err := currentSpaceID()
	if err != nil {
		return nil, err
	}
	return spaces.Get(id)
}

var currentSpaceIDOverride uuid.UUID

// currentSpaceID returns the space chosen by the --space flag (read in
// nodeInit) or by `space use` earlier in the same process, or falls back to
// the only known space when exactly one is registered.
func currentSpaceID() (uuid.UUID, error) {
	if currentSpaceIDOverride != uuid.Nil {
		return currentSpaceIDOverride, nil
	}
	refs := spaces.List()
	if len(refs) == 1 {
		return refs[0].ID, nil
	}
	return uuid.Nil, fmt.Errorf("ambiguous space selection; pass --space <id> (%d spaces known)", len(refs))
}

// openSpace builds a fully wired Space around ref: EventStore, blob store,
// and a single-node ReplicatedKV bootstrapped fresh per process. A real
// multi-node deployment would join an existing raft cluster instead of
// always bootstrapping.
func openSpace(ref *core.SpaceRef) (*core.Space, func(), error) {
	codec := core.NewEventCodec()
	store, err := core.OpenEventStore(cfg.EventStorePath(ref.Name), codec, log)
	if err != nil {
		return nil, nil, err
	}
	blobs, err := core.NewLocalBlobStore(cfg.BlobDir())
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	secret, err := ref.SecretBytes()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	kv, err := core.NewRaftKV(core.RaftKVConfig{
		NodeID:    ref.ID.String(),
		BindAddr:  "127.0.0.1:0",
		DataDir:   cfg.KVDir() + "/" + ref.ID.String(),
		Bootstrap: true,
		Log:       log,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	space := core.NewSpace(ref.ID, ref.Name, secret, store, blobs, kv, log)
	closer := func() {
		kv.Close()
		space.Close()
	}
	return space, closer, nil
}

// decodeHashFlag parses a hex-encoded 32-byte schema hash from a --table
// flag value, used by the row subcommands to name the owning table.
func decodeHashFlag(s string) ([32]byte, error) {
	var h [32]byte
	if s == "" {
		return h, fmt.Errorf("--table <hex schema hash> is required")
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return h, fmt.Errorf("invalid --table hash %q", s)
	}
	copy(h[:], b)
	return h, nil
}
