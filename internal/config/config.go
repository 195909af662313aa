package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds process configuration, read from the environment
type Config struct {
	Environment string
	Port        string
	LogLevel    string

	// Storage
	UseMemoryStore bool
	DB             DBConfig

	// Sessions
	SessionBackend string // "memory" or "redis"
	SessionTTL     time.Duration
	SessionSweep   time.Duration
	Redis          RedisConfig

	// Notifications
	SMSProvider      string // "twilio", "queue" or "log"
	Twilio           TwilioConfig
	AMQPURL          string
	AMQPExchange     string
	NotifyWorkers    int
	NotifyQueueSize  int
	SigningSecret    string
	ReminderHour     int
	RemindersEnabled bool

	// Menu behaviour
	StallPolicy string
	DuesAmount  float64
}

type DBConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	Name                   string
	InstanceConnectionName string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// DSN returns the Postgres connection string, using the Cloud SQL socket
// when an instance connection name is set
func (d DBConfig) DSN() string {
	if d.InstanceConnectionName != "" {
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			d.InstanceConnectionName, d.User, d.Password, d.Name)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		d.Host, d.User, d.Password, d.Name, d.Port)
}

// Load reads .env (when present) and the environment into a Config
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// Missing files are fine in production; the environment is authoritative
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Environment:    v.GetString("ENVIRONMENT"),
		Port:           v.GetString("PORT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		UseMemoryStore: v.GetBool("USE_MEMORY_STORE"),
		DB: DBConfig{
			Host:                   v.GetString("DB_HOST"),
			Port:                   v.GetInt("DB_PORT"),
			User:                   v.GetString("DB_USER"),
			Password:               v.GetString("DB_PASS"),
			Name:                   v.GetString("DB_NAME"),
			InstanceConnectionName: v.GetString("INSTANCE_CONNECTION_NAME"),
		},
		SessionBackend: strings.ToLower(v.GetString("SESSION_BACKEND")),
		SessionTTL:     v.GetDuration("SESSION_TTL"),
		SessionSweep:   v.GetDuration("SESSION_SWEEP_INTERVAL"),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		SMSProvider: strings.ToLower(v.GetString("SMS_PROVIDER")),
		Twilio: TwilioConfig{
			AccountSID: v.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:  v.GetString("TWILIO_AUTH_TOKEN"),
			From:       v.GetString("TWILIO_SMS_FROM"),
		},
		AMQPURL:          v.GetString("AMQP_URL"),
		AMQPExchange:     v.GetString("AMQP_EXCHANGE"),
		NotifyWorkers:    v.GetInt("NOTIFY_WORKERS"),
		NotifyQueueSize:  v.GetInt("NOTIFY_QUEUE_SIZE"),
		SigningSecret:    v.GetString("USSD_SIGNING_SECRET"),
		ReminderHour:     v.GetInt("REMINDER_HOUR"),
		RemindersEnabled: v.GetBool("REMINDERS_ENABLED"),
		StallPolicy:      strings.ToLower(v.GetString("STALL_POLICY")),
		DuesAmount:       v.GetFloat64("DUES_AMOUNT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", "3001")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("USE_MEMORY_STORE", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "mwenge_market")
	v.SetDefault("SESSION_BACKEND", "memory")
	v.SetDefault("SESSION_TTL", 5*time.Minute)
	v.SetDefault("SESSION_SWEEP_INTERVAL", time.Minute)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SMS_PROVIDER", "log")
	v.SetDefault("AMQP_EXCHANGE", "sms.outbound")
	v.SetDefault("NOTIFY_WORKERS", 4)
	v.SetDefault("NOTIFY_QUEUE_SIZE", 256)
	v.SetDefault("REMINDER_HOUR", 7)
	v.SetDefault("REMINDERS_ENABLED", false)
	v.SetDefault("STALL_POLICY", "confirm")
	v.SetDefault("DUES_AMOUNT", 1000)
}

func (c *Config) validate() error {
	switch c.SessionBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("SESSION_BACKEND must be memory or redis, got %q", c.SessionBackend)
	}

	switch c.SMSProvider {
	case "log":
	case "twilio":
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" || c.Twilio.From == "" {
			return fmt.Errorf("SMS_PROVIDER=twilio requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_SMS_FROM")
		}
	case "queue":
		if c.AMQPURL == "" {
			return fmt.Errorf("SMS_PROVIDER=queue requires AMQP_URL")
		}
	default:
		return fmt.Errorf("SMS_PROVIDER must be twilio, queue or log, got %q", c.SMSProvider)
	}

	switch c.StallPolicy {
	case "confirm", "reserve":
	default:
		return fmt.Errorf("STALL_POLICY must be confirm or reserve, got %q", c.StallPolicy)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.DuesAmount <= 0 {
		return fmt.Errorf("DUES_AMOUNT must be positive")
	}
	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		return fmt.Errorf("REMINDER_HOUR must be between 0 and 23")
	}
	return nil
}
