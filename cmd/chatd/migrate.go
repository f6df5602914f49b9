package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/chat/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage postgres schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPostgres(cmd, func(s *postgres.PGStore) error {
			if err := s.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPostgres(cmd, func(s *postgres.PGStore) error {
			status, err := s.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tAPPLIED\tAPPLIED AT")
			for _, m := range status {
				at := "-"
				if m.AppliedAt != nil {
					at = m.AppliedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%t\t%s\n", m.Name, m.Applied, at)
			}
			return w.Flush()
		})
	},
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert the most recent migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPostgres(cmd, func(s *postgres.PGStore) error {
			if err := s.Rollback(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "last migration rolled back")
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd, migrateRollbackCmd)
}

func withPostgres(cmd *cobra.Command, fn func(*postgres.PGStore) error) error {
	if cfg.StoreDriver != "postgres" {
		return fmt.Errorf("migrate needs STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
	}
	s, err := postgres.Open(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
