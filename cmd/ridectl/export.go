package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pkordes/rideplanner/internal/service"
)

func newExportCmd(a *app) *cobra.Command {
	var userID, outDir string
	var link bool

	cmd := &cobra.Command{
		Use:   "export <ride-id>",
		Short: "Export a ride as an iCalendar file",
		Long: `Reads the ride as its owner and writes <title>.ics into --out.
Use "-" as --out to print the calendar to stdout. With --link the Google
Calendar link is printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := a.storeConfig()
			if err != nil {
				return err
			}
			st, closeStore, err := a.openStore(cmd.Context(), cfg, a.log)
			if err != nil {
				return err
			}
			defer closeStore()

			rides := service.NewRideService(st, a.log)
			if link {
				url, err := rides.GoogleCalendarLink(cmd.Context(), userID, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
				return nil
			}

			f, err := rides.ExportCalendar(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}
			if outDir == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), f.Body)
				return err
			}
			path := filepath.Join(outDir, f.Filename)
			if err := os.WriteFile(path, []byte(f.Body), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "id of the ride owner")
	cmd.Flags().StringVar(&outDir, "out", ".", `directory for the .ics file, or "-" for stdout`)
	cmd.Flags().BoolVar(&link, "link", false, "print the Google Calendar link instead")
	return cmd
}
