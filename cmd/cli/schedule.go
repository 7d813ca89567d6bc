package cli

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/b5/squiggle/core"
)

func scheduleRun(cmd *cobra.Command, args []string) error {
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
	wait, _ := cmd.Flags().GetBool("wait")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	pub, _ := author.Public().(ed25519.PublicKey)
	scheduler := core.NewScheduler(space.KV, space.Blobs, log)
	id := uuid.New()
	desc := core.JobDescription{
		JobType:   "wasm",
		ProgramID: programID,
		Author:    fmt.Sprintf("%x", pub),
		Timeout:   timeout,
	}

	if !wait {
		if err := scheduler.RunJob(cmd.Context(), ref.ID, id, desc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", id)
		return nil
	}

	result, err := scheduler.RunJobAndWait(cmd.Context(), ref.ID, id, desc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, result.Status)
	if result.Output != nil && result.Output.Wasm != nil {
		fmt.Fprintln(cmd.OutOrStdout(), result.Output.Wasm.Output)
	}
	if result.Message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
	}
	return nil
}

func scheduleCancel(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("invalid job id: %w", err)
	}
	return core.NewScheduler(space.KV, space.Blobs, log).Cancel(cmd.Context(), id)
}

var scheduleCmd = &cobra.Command{
	Use:               "schedule",
	Short:             "schedule and observe program runs",
	PersistentPreRunE: nodeInit,
}

func init() {
	run := &cobra.Command{Use: "run <program-id>", Args: cobra.ExactArgs(1), RunE: scheduleRun}
	run.Flags().Bool("wait", false, "block until the job completes")
	run.Flags().Duration("timeout", time.Hour, "maximum execution time")

	scheduleCmd.AddCommand(run, &cobra.Command{Use: "cancel <job-id>", Args: cobra.ExactArgs(1), RunE: scheduleCancel})
}

var ScheduleCmd = scheduleCmd

func RegisterSchedule(root *cobra.Command) { root.AddCommand(ScheduleCmd) }
