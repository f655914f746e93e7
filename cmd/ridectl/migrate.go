package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkordes/rideplanner/internal/bootstrap"
	"github.com/pkordes/rideplanner/internal/config"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.storeConfig()
			if err != nil {
				return err
			}
			if cfg.Backend != config.StorePostgres {
				return fmt.Errorf("migrate needs the postgres store, got %q", cfg.Backend)
			}
			applied, err := bootstrap.Migrate(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %05d\n", v)
			}
			return nil
		},
	}
}
