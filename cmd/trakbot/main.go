package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "trakbot",
		Short: "IRC bot for Pivotal Tracker",
		Long: `trakbot sits in an IRC channel and lets people search, create and
update Pivotal Tracker stories without leaving the chat.

Each user teaches the bot their own API token once:
  trakbot token <token>`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.trakbot/config.yaml)")

	rootCmd.AddCommand(
		newStartCmd(&configPath),
		newImportStateCmd(&configPath),
		newConfigCmd(&configPath),
		newDoctorCmd(&configPath),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show trakbot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trakbot v%s\n", version)
		},
	}
}
