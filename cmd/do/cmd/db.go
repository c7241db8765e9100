package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/templui/authapi/internal/config"
	"github.com/templui/authapi/internal/db"
	"github.com/templui/authapi/internal/repository"
	"github.com/templui/authapi/internal/service"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withDB(func(cmd *cobra.Command, cfg *config.Config, database *sqlx.DB) error {
				if err := db.RunMigrations(database.DB, cfg.DBDriver); err != nil {
					return err
				}
				return printVersion(cmd, cfg, database)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: withDB(func(cmd *cobra.Command, cfg *config.Config, database *sqlx.DB) error {
				if err := db.MigrateDown(database.DB, cfg.DBDriver); err != nil {
					return err
				}
				return printVersion(cmd, cfg, database)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the current schema version",
			RunE:  withDB(printVersion),
		},
	)

	return cmd
}

func PurgeResetTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-reset-tokens",
		Short: "Clear password reset tokens that have expired",
		RunE: withDB(func(cmd *cobra.Command, cfg *config.Config, database *sqlx.DB) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			accounts := service.NewAccountService(repository.NewUserRepository(database), nil, nil, nil, nil, cfg.ResetURLBase, cfg.TokenPasswordResetExpiry)
			n, err := accounts.PurgeExpiredResetTokens(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d expired reset token(s)\n", n)
			return nil
		}),
	}
}

func withDB(fn func(cmd *cobra.Command, cfg *config.Config, database *sqlx.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close(database) }()

		return fn(cmd, cfg, database)
	}
}

func printVersion(cmd *cobra.Command, cfg *config.Config, database *sqlx.DB) error {
	version, err := db.Version(database.DB, cfg.DBDriver)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return nil
}
