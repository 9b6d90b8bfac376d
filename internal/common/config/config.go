package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Workers  WorkersConfig  `mapstructure:"workers"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds settings for the producer-side HTTP API.
type ServerConfig struct {
	Address     string `mapstructure:"address"`
	MetricsAddr string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig holds the retry policy applied to queue consumers. The policy
// is explicit here rather than hidden inside library defaults.
type QueueConfig struct {
	MaxAttempts    int `mapstructure:"max_attempts"`
	BaseDelayMS    int `mapstructure:"base_delay_ms"`
	Multiplier     int `mapstructure:"multiplier"`
	PollIntervalMS int `mapstructure:"poll_interval_ms"`
}

// WorkersConfig holds per-consumer settings.
type WorkersConfig struct {
	Notification WorkerConfig   `mapstructure:"notification"`
	Export       WorkerConfig   `mapstructure:"export"`
	Aggregate    AggregateConfig `mapstructure:"aggregate"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
	TimeoutMS   int  `mapstructure:"timeout_ms"`
}

// AggregateConfig holds settings for the daily metrics scheduler.
type AggregateConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	RunAt   string `mapstructure:"run_at"` // "HH:MM", server local time
}

// ChannelsConfig holds settings for the notification channel senders.
type ChannelsConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	WhatsApp struct {
		Enabled   bool   `mapstructure:"enabled"`
		APIURL    string `mapstructure:"api_url"`
		APIToken  string `mapstructure:"api_token"`
		TimeoutMS int    `mapstructure:"timeout_ms"`
	} `mapstructure:"whatsapp"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// StorageConfig holds object storage settings for export artifacts.
type StorageConfig struct {
	Bucket            string `mapstructure:"bucket"`
	Region            string `mapstructure:"region"`
	PresignTTLSeconds int    `mapstructure:"presign_ttl_seconds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
