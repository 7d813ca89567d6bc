package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/b5/squiggle/cmd/cli"
)

func main() {
	rootCmd := &cobra.Command{Use: "spacenet"}
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")

	cli.RegisterAccount(rootCmd)
	cli.RegisterSpace(rootCmd)
	cli.RegisterUser(rootCmd)
	cli.RegisterTable(rootCmd)
	cli.RegisterRow(rootCmd)
	cli.RegisterProgram(rootCmd)
	cli.RegisterSecret(rootCmd)
	cli.RegisterSchedule(rootCmd)
	cli.RegisterWorker(rootCmd)
	cli.RegisterSync(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
