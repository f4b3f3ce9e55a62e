package cmd

import (
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/tgdrive/clouddrive/internal/config"
)

func NewMigrate() *cobra.Command {
	var cfg config.MigrateCmdConfig
	loader := config.NewConfigLoader()
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DB.DataSource == "" {
				return errors.New("db.data-source is required")
			}
			ctx, lg := setupLogger(cmd.Context(), &cfg.Log)
			defer lg.Sync()
			db, err := openDatabase(ctx, &cfg.DB, lg, true)
			if err != nil {
				return err
			}
			defer db.Close()
			lg.Info("database is up to date")
			return nil
		},
	}
	loadConfig(cmd, loader, &cfg)
	return cmd
}
