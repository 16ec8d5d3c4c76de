package cli

import (
	"context"
	"fmt"
	"log/slog"

	"concurso-duel/internal/config"
	pginfra "concurso-duel/internal/infra/postgres"
	"concurso-duel/internal/logging"
	"github.com/spf13/cobra"
)

// NewMigrateCmd applies database migrations for the durable reward ledger.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, true)
			return runMigrations(cmd.Context(), cfg, logger)
		},
	}
}

func runMigrations(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := pginfra.OpenDB(cfg.Postgres.URL)
	defer db.Close()

	group, err := pginfra.Migrate(ctx, db)
	if err != nil {
		return err
	}
	if group.IsZero() {
		logger.Info("no new migrations")
		return nil
	}
	logger.Info("migrations applied", "group", group.String())
	return nil
}
