package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cfdi-tracker/internal/repository"
)

func (a *app) dbHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dbhealth",
		Short: "Open the configured batch store and ping it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo, err := a.openStore(ctx)
			if err != nil {
				return fmt.Errorf("opening DB: %w", err)
			}
			defer a.closeStore(repo)

			if err := repository.HealthCheck(ctx, repo, a.cfg.Database.DialTimeout, a.logger); err != nil {
				return fmt.Errorf("DB health: FAIL (%w)", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "DB health: OK (%s)\n", a.cfg.Database.Driver)
			return nil
		},
	}
}
