package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/b5/squiggle/core"
)

func workerRun(cmd *cobra.Command, _ []string) error {
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

	key, _ := cmd.Flags().GetString("key")
	if key == "" {
		key = fmt.Sprintf("%x", author.Public())
	}
	workDir, _ := cmd.Flags().GetString("workdir")
	if workDir == "" {
		workDir = cfg.DataRoot + "/work"
	}

	executors := core.NewExecutorRegistry(core.NewWASMExecutor(), core.DockerExecutor{})
	worker := core.NewWorker(key, space.KV, space.Blobs, space, executors, author, workDir, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	fmt.Fprintf(cmd.OutOrStdout(), "worker %s watching space %s\n", key, ref.Name)
	return worker.Run(ctx)
}

var workerCmd = &cobra.Command{
	Use:               "worker",
	Short:             "run a job-execution worker against the current space",
	PersistentPreRunE: nodeInit,
}

func init() {
	run := &cobra.Command{Use: "run", RunE: workerRun}
	run.Flags().String("key", "", "worker identity key (defaults to the current account's hex pubkey)")
	run.Flags().String("workdir", "", "scratch directory for job downloads/uploads")
	workerCmd.AddCommand(run)
}

var WorkerCmd = workerCmd

func RegisterWorker(root *cobra.Command) { root.AddCommand(WorkerCmd) }
