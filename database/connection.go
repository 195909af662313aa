package database

import (
	"fmt"
	"time"

	"github.com/Ananth-NQI/soko-ussd/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const connectAttempts = 10

// Connect opens the Postgres connection, retrying while the database starts
func Connect(dsn string, log logrus.FieldLogger) (*gorm.DB, error) {
	var lastErr error
	for i := 1; i <= connectAttempts; i++ {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err == nil {
			log.Info("Database connected successfully")
			return db, nil
		}

		lastErr = err
		log.WithField("attempt", i).WithError(err).Warn("Database connection failed")
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", connectAttempts, lastErr)
}

// Migrate creates or updates the market tables
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Stall{},
		&models.Payment{},
		&models.Issue{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
