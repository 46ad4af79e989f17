package main

import (
	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/marketplace/internal/db"
	"github.com/Skotchmaster/marketplace/internal/logging"
	"github.com/Skotchmaster/marketplace/internal/session"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database schema and purge expired sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel)

			gdb, err := db.Open(logging.IntoContext(cmd.Context(), log), cfg.DBDriver, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(gdb) }()

			if err := db.Migrate(gdb); err != nil {
				return err
			}
			purged, err := session.NewGormStore(gdb, cfg.SessionTTL).Purge(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("migrate_complete", "driver", cfg.DBDriver, "expired_sessions_purged", purged)
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, commonFlags)
	return cmd
}
