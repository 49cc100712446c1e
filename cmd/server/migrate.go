package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yukikurage/taskflow-api/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := database.Connect(cfg, log)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("failed to get database handle: %w", err)
			}
			defer sqlDB.Close()

			return database.Migrate(db, log)
		},
	}
}
