package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/talkline/counters/internal/database"
	"github.com/talkline/counters/internal/database/migrations"
	"github.com/talkline/counters/internal/setup/config"
	"github.com/talkline/counters/internal/setup/telemetry"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	db, migrator, logger, err := setupMigrator()
	if err != nil {
		return fmt.Errorf("failed to setup migrator: %w", err)
	}
	defer db.Close()

	app := &cli.Command{
		Name:  "db",
		Usage: "Database management tool",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Initialize migration tables",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return migrator.Init(ctx)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run pending migrations",
				Action: func(ctx context.Context, _ *cli.Command) error {
					if err := migrator.Lock(ctx); err != nil {
						return err
					}
					defer migrator.Unlock(ctx) //nolint:errcheck

					group, err := migrator.Migrate(ctx)
					if err != nil {
						return err
					}

					if group.IsZero() {
						logger.Info("No new migrations to run (database is up to date)")
						return nil
					}

					logger.Info("Successfully migrated", zap.String("group", group.String()))

					return nil
				},
			},
			{
				Name:  "rollback",
				Usage: "Rollback the last migration group",
				Action: func(ctx context.Context, _ *cli.Command) error {
					if err := migrator.Lock(ctx); err != nil {
						return err
					}
					defer migrator.Unlock(ctx) //nolint:errcheck

					group, err := migrator.Rollback(ctx)
					if err != nil {
						return err
					}

					if group.IsZero() {
						logger.Info("No groups to roll back")
						return nil
					}

					logger.Info("Successfully rolled back", zap.String("group", group.String()))

					return nil
				},
			},
			{
				Name:  "status",
				Usage: "Show migration status",
				Action: func(ctx context.Context, _ *cli.Command) error {
					ms, err := migrator.MigrationsWithStatus(ctx)
					if err != nil {
						return err
					}

					logger.Info("Migration status",
						zap.String("migrations", ms.String()),
						zap.String("unapplied", ms.Unapplied().String()),
						zap.String("last_group", ms.LastGroup().String()))

					return nil
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

func setupMigrator() (database.Client, *migrate.Migrator, *zap.Logger, error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, dbLogger, err := telemetry.NewLoggers(&cfg.Debug)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create loggers: %w", err)
	}

	db, err := database.NewConnection(context.Background(), &cfg.PostgreSQL, dbLogger, false)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, migrate.NewMigrator(db.DB(), migrations.Migrations), logger, nil
}
