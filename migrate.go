package main

import (
	"github.com/Ananth-NQI/soko-ussd/database"
	"github.com/Ananth-NQI/soko-ussd/internal/storage"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := database.Connect(cfg.DB.DSN(), log)
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}

		log.Info("Database migrations completed")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo stalls and a demo trader",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := database.Connect(cfg.DB.DSN(), log)
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}

		return database.Seed(cmd.Context(), storage.NewDatabaseStore(db), database.DefaultSeed(), log)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
