package cmd

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"
	"github.com/tgdrive/clouddrive/internal/config"
	"github.com/tgdrive/clouddrive/internal/database"
	"github.com/tgdrive/clouddrive/internal/logging"
	"go.uber.org/zap"
)

// loadConfig wires the loader into cmd so flags, env and file are resolved
// before the command runs.
func loadConfig(cmd *cobra.Command, loader *config.ConfigLoader, cfg any) {
	if err := loader.RegisterFlags(cmd.Flags(), "", cfg, false); err != nil {
		panic(err)
	}
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if err := loader.Load(cmd, cfg); err != nil {
			return err
		}
		return loader.Validate()
	}
}

func setupLogger(ctx context.Context, cfg *config.LoggingConfig) (context.Context, *zap.Logger) {
	logging.SetConfig(logging.ParseConfig(cfg.Level, cfg.File))
	lg := logging.DefaultLogger()
	return logging.WithLogger(ctx, lg), lg
}

func openDatabase(ctx context.Context, cfg *config.DBConfig, lg *zap.Logger, migrate bool) (*sql.DB, error) {
	db, err := database.NewDatabase(ctx, cfg, lg)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.MigrateDB(ctx, db, lg); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}
