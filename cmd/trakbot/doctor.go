package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/banner"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/health"
)

func newDoctorCmd(configPath *string) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, storage and connectivity",
		Long: `Run health checks on the configuration, the session database, the
Pivotal Tracker API and the IRC server.

Examples:
  trakbot doctor           # Run all checks
  trakbot doctor --verbose # Show how to fix failures`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			report := (&health.Checker{}).Run(cmd.Context(), cfg)
			out := cmd.OutOrStdout()
			banner.HealthReport(out, report, verbose)

			errs, warnings := report.Summary()
			if !report.Ready() {
				return fmt.Errorf("%d checks failed, %d warnings", errs, warnings)
			}
			fmt.Fprintf(out, "Ready to start (%d warnings)\n", warnings)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show fixes for failed checks")
	return cmd
}
