package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/session"
)

func newImportStateCmd(configPath *string) *cobra.Command {
	var storageFile string

	cmd := &cobra.Command{
		Use:   "import-state <state.yml>",
		Short: "Import users from an old YAML state file",
		Long: `Copy users' tokens and projects from the YAML state file written by
earlier versions of the bot into the session database. Users that already
have a token in the database are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("storage-file") {
				cfg.Storage.Path = storageFile
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open state file: %w", err)
			}
			defer func() { _ = f.Close() }()

			store, err := session.Open(cfg.Storage.Driver, cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("failed to open session store: %w", err)
			}
			defer func() { _ = store.Close() }()

			n, err := store.ImportLegacy(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d users into %s\n", n, cfg.Storage.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&storageFile, "storage-file", "y", "", "SQLite file holding user sessions")
	return cmd
}
