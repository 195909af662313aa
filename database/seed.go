package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ananth-NQI/soko-ussd/internal/models"
	"github.com/Ananth-NQI/soko-ussd/internal/services"
	"github.com/Ananth-NQI/soko-ussd/internal/storage"
	"github.com/sirupsen/logrus"
)

// SeedOptions describes the demo data written by Seed
type SeedOptions struct {
	Stalls    []string
	UserName  string
	UserPhone string
	UserPIN   string
}

// DefaultSeed is the data used for local development
func DefaultSeed() SeedOptions {
	return SeedOptions{
		Stalls:    []string{"001-A", "002-B", "003-C", "004-D", "005-E", "006-F"},
		UserName:  "Mjasiriamali Demo",
		UserPhone: "+255700000001",
		UserPIN:   "1234",
	}
}

// Seed inserts stalls and a demo trader. It skips when the trader exists.
func Seed(ctx context.Context, store storage.Store, opts SeedOptions, log logrus.FieldLogger) error {
	_, err := store.GetUserByPhone(ctx, opts.UserPhone)
	if err == nil {
		log.Info("Seed data already exists, skipping...")
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to check seed data: %w", err)
	}

	log.Info("Seeding database with initial data...")

	for _, number := range opts.Stalls {
		if _, err := store.CreateStall(ctx, &models.Stall{StallNumber: number, Available: true}); err != nil {
			return fmt.Errorf("failed to seed stall %s: %w", number, err)
		}
	}

	hash, err := services.HashPIN(opts.UserPIN)
	if err != nil {
		return err
	}
	user := &models.User{Name: opts.UserName, Phone: opts.UserPhone, PinHash: hash}
	if _, err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to seed user: %w", err)
	}

	log.WithFields(logrus.Fields{"stalls": len(opts.Stalls), "phone": user.Phone}).Info("Seed completed")
	return nil
}
