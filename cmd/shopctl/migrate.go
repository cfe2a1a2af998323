package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/game_store/pkg/config"
	pkgdb "github.com/Skotchmaster/game_store/pkg/db"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQL schema (postgres, mysql)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *pkgdb.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *pkgdb.Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *pkgdb.Migrator) error {
				return printVersion(cmd, m)
			})
		},
	})

	return cmd
}

func withMigrator(fn func(m *pkgdb.Migrator) error) error {
	cfg := config.Load()
	m, err := pkgdb.NewMigrator(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func printVersion(cmd *cobra.Command, m *pkgdb.Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", v, dirty)
	return nil
}
