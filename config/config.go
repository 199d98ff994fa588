package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	DefaultPollIntervalMs = 30000
	DefaultMaxRetries     = 3
)

type IndexerConfig struct {
	URL       string `mapstructure:"url" validate:"required,url"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

type BackendConfig struct {
	URL         string `mapstructure:"url" validate:"required,url"`
	AccessToken string `mapstructure:"access_token"`
	TimeoutMs   int    `mapstructure:"timeout_ms"`
}

type WatcherConfig struct {
	PollIntervalMs int `mapstructure:"poll_interval_ms" validate:"gte=0"`
	MaxRetries     int `mapstructure:"max_retries" validate:"gte=0"`
}

func (c *WatcherConfig) PollInterval() time.Duration {
	if c.PollIntervalMs <= 0 {
		return time.Duration(DefaultPollIntervalMs) * time.Millisecond
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

type DatabaseConfig struct {
	URL           string `mapstructure:"url"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

type ApiConfig struct {
	Addr string `mapstructure:"addr"`
}

type EventBusConfig struct {
	ReceiverBufferSize int `mapstructure:"receiver_buffer_size"`
}

type TelemetryConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Credential  string `mapstructure:"credential"`
	ServiceName string `mapstructure:"service_name"`
	Env         string `mapstructure:"env"`
}

type Config struct {
	Indexer   IndexerConfig   `mapstructure:"indexer"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Api       ApiConfig       `mapstructure:"api"`
	EventBus  EventBusConfig  `mapstructure:"event_bus"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

var GlobalConfig *Config

// LoadEnv loads the process environment into viper. A local .env file is
// optional; a missing one is not an error.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}
	viper.AutomaticEnv()
	return nil
}

// Load reads data/<env>.json, merges environment overrides and validates
// the result into GlobalConfig.
func Load(environment string) error {
	var cfg Config

	viper.SetConfigFile(fmt.Sprintf("data/%s.json", environment))
	viper.SetConfigType("json")
	if err := viper.MergeInConfig(); err != nil {
		return fmt.Errorf("error reading config file for environment %s: %w", environment, err)
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Environment variables win over the config file for secrets.
	if url := viper.GetString("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if uri := viper.GetString("MONGODB_URI"); uri != "" {
		cfg.Database.MongoURI = uri
	}
	if token := viper.GetString("BACKEND_ACCESS_TOKEN"); token != "" {
		cfg.Backend.AccessToken = token
	}

	if cfg.Watcher.PollIntervalMs == 0 {
		cfg.Watcher.PollIntervalMs = DefaultPollIntervalMs
	}
	if cfg.Watcher.MaxRetries == 0 {
		cfg.Watcher.MaxRetries = DefaultMaxRetries
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	GlobalConfig = &cfg
	return nil
}

func InitLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(viper.GetString("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if viper.GetBool("IS_DEV") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
