package config

import (
	"fmt"
	"log"
	"time"
	_ "time/tzdata" // TIMEZONE работает и в образах без zoneinfo

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Environment string
	HTTPAddr    string
	Log         LogConfig
	Store       StoreConfig
	Booking     BookingConfig
	Jobs        JobsConfig
	Redis       RedisConfig
	Telegram    TelegramConfig
}

type LogConfig struct {
	Level string
	File  string
}

type StoreConfig struct {
	Driver string
	DBDSN  string
}

// BookingConfig параметры движка бронирования
type BookingConfig struct {
	Timezone              string
	HoldTTL               time.Duration
	RefundCutoff          time.Duration
	MaxGroupParticipants  int
	CASMaxRetries         int
	ProjectionHorizonDays int
}

// JobsConfig интервалы фоновых задач
type JobsConfig struct {
	SweepInterval      time.Duration
	SweepBatchSize     int
	RetentionInterval  time.Duration
	ProjectionInterval time.Duration
	OutboxInterval     time.Duration
	NotifyWorkers      int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TelegramConfig struct {
	Token  string
	ChatID int64
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Environment: v.GetString("ENV"),
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
			File:  v.GetString("LOG_FILE"),
		},
		Store: StoreConfig{
			Driver: v.GetString("STORE_DRIVER"),
			DBDSN:  v.GetString("DB_DSN"),
		},
		Booking: BookingConfig{
			Timezone:              v.GetString("TIMEZONE"),
			HoldTTL:               parseDuration(v.GetString("HOLD_TTL"), 5*time.Minute),
			RefundCutoff:          parseDuration(v.GetString("REFUND_CUTOFF"), 12*time.Hour),
			MaxGroupParticipants:  v.GetInt("MAX_GROUP_PARTICIPANTS"),
			CASMaxRetries:         v.GetInt("CAS_MAX_RETRIES"),
			ProjectionHorizonDays: v.GetInt("PROJECTION_HORIZON_DAYS"),
		},
		Jobs: JobsConfig{
			SweepInterval:      parseDuration(v.GetString("SWEEP_INTERVAL"), time.Minute),
			SweepBatchSize:     v.GetInt("SWEEP_BATCH_SIZE"),
			RetentionInterval:  parseDuration(v.GetString("RETENTION_INTERVAL"), time.Hour),
			ProjectionInterval: parseDuration(v.GetString("PROJECTION_INTERVAL"), 24*time.Hour),
			OutboxInterval:     parseDuration(v.GetString("OUTBOX_INTERVAL"), 30*time.Second),
			NotifyWorkers:      v.GetInt("NOTIFY_WORKERS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Telegram: TelegramConfig{
			Token:  v.GetString("TELEGRAM_TOKEN"),
			ChatID: v.GetInt64("TELEGRAM_CHAT_ID"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет обязательные поля и согласованность значений
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Store.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Booking.Timezone, err)
	}
	if c.Booking.HoldTTL <= 0 {
		return fmt.Errorf("HOLD_TTL must be positive")
	}
	if c.Booking.MaxGroupParticipants < 1 {
		return fmt.Errorf("MAX_GROUP_PARTICIPANTS must be at least 1")
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}

	return nil
}

// Location таймзона, в которой (date, hour) слота превращается во время начала
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("LOG_FILE", "")

	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_DSN", "")

	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("HOLD_TTL", "5m")
	v.SetDefault("REFUND_CUTOFF", "12h")
	v.SetDefault("MAX_GROUP_PARTICIPANTS", 10)
	v.SetDefault("CAS_MAX_RETRIES", 3)
	v.SetDefault("PROJECTION_HORIZON_DAYS", 60)

	v.SetDefault("SWEEP_INTERVAL", "60s")
	v.SetDefault("SWEEP_BATCH_SIZE", 500)
	v.SetDefault("RETENTION_INTERVAL", "1h")
	v.SetDefault("PROJECTION_INTERVAL", "24h")
	v.SetDefault("OUTBOX_INTERVAL", "30s")
	v.SetDefault("NOTIFY_WORKERS", 2)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("TELEGRAM_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", 0)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
