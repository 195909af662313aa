package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	backend "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Ananth-NQI/soko-ussd/database"
	"github.com/Ananth-NQI/soko-ussd/internal/config"
	"github.com/Ananth-NQI/soko-ussd/internal/handlers"
	"github.com/Ananth-NQI/soko-ussd/internal/jobs"
	"github.com/Ananth-NQI/soko-ussd/internal/routes"
	"github.com/Ananth-NQI/soko-ussd/internal/services"
	"github.com/Ananth-NQI/soko-ussd/internal/session"
	"github.com/Ananth-NQI/soko-ussd/internal/storage"
	"github.com/Ananth-NQI/soko-ussd/internal/ussd"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the USSD HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// sessionStore is a session.Store that holds resources until closed
type sessionStore interface {
	session.Store
	Close() error
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	store, storageType, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	sessions, err := openSessions(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sessions.Close()

	sender, closeSender, err := openSender(cfg, log)
	if err != nil {
		return err
	}
	defer closeSender()

	notifier := services.NewNotificationService(sender, cfg.NotifyWorkers, cfg.NotifyQueueSize, log)
	defer notifier.Close()

	machine := ussd.NewMachine(store, services.NewPINService(store), log,
		ussd.WithStallPolicy(ussd.ParseStallPolicy(cfg.StallPolicy)),
		ussd.WithDuesAmount(cfg.DuesAmount),
	)

	var reminders *jobs.DuesReminderJob
	if cfg.RemindersEnabled {
		reminders = jobs.NewDuesReminderJob(store, notifier, cfg.ReminderHour, log)
		reminders.Start()
		defer reminders.Stop()
	}

	app := fiber.New(fiber.Config{
		AppName: "Soko USSD v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())

	routes.SetupRoutes(app,
		handlers.NewUSSDHandler(sessions, machine, notifier, log),
		handlers.NewHealthHandler(version, storageType, store, sessions),
		cfg.SigningSecret,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	log.WithFields(logrus.Fields{
		"port":         cfg.Port,
		"environment":  cfg.Environment,
		"storage":      storageType,
		"sessions":     cfg.SessionBackend,
		"sms_provider": cfg.SMSProvider,
		"stall_policy": machine.Policy(),
	}).Info("Soko USSD starting")

	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (storage.Store, string, error) {
	if cfg.UseMemoryStore {
		log.Warn("Using in-memory storage (not for production!)")
		store := storage.NewMemoryStore()
		if err := database.Seed(ctx, store, database.DefaultSeed(), log); err != nil {
			return nil, "", err
		}
		return store, "memory", nil
	}

	log.Info("Connecting to PostgreSQL database...")
	db, err := database.Connect(cfg.DB.DSN(), log)
	if err != nil {
		return nil, "", err
	}
	if err := database.Migrate(db); err != nil {
		return nil, "", err
	}
	return storage.NewDatabaseStore(db), "postgres", nil
}

func openSessions(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (sessionStore, error) {
	if cfg.SessionBackend != "redis" {
		return session.NewMemoryStore(cfg.SessionTTL, cfg.SessionSweep, log), nil
	}

	client := backend.NewClient(&backend.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	log.WithField("addr", cfg.Redis.Addr).Info("Using Redis session store")
	return session.NewRedisStore(client, cfg.SessionTTL), nil
}

func openSender(cfg *config.Config, log logrus.FieldLogger) (services.Sender, func(), error) {
	switch cfg.SMSProvider {
	case "twilio":
		tw, err := services.NewTwilioService(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From, log)
		if err != nil {
			return nil, nil, err
		}
		return tw, func() {}, nil
	case "queue":
		q, err := services.NewQueueSender(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		return q, func() { _ = q.Close() }, nil
	}
	log.Warn("SMS provider is log; messages will not leave this process")
	return services.NewLogSender(log), func() {}, nil
}
