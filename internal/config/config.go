package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Stale-data suppression windows.
	ConnectIgnoreWindow   time.Duration `env:"CONNECT_IGNORE_WINDOW" default:"2s"`
	ClearSessionExtension time.Duration `env:"CLEAR_SESSION_EXTENSION" default:"5s"`

	// Per-connection transport tuning.
	SendBufferSize int           `env:"SEND_BUFFER_SIZE" default:"16"`
	WriteDeadline  time.Duration `env:"WRITE_DEADLINE" default:"5s"`
	PingInterval   time.Duration `env:"PING_INTERVAL" default:"30s"`
	PongDeadline   time.Duration `env:"PONG_DEADLINE" default:"60s"`

	// Connection admission limits.
	MaxWebSocketConnections int64   `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"32"`
	ConnectionRate          float64 `env:"CONNECTION_RATE" default:"10"`
	ConnectionBurst         int     `env:"CONNECTION_BURST" default:"10"`

	// Maximum accepted webhook body size in bytes.
	MaxAlertBodyBytes int64 `env:"MAX_ALERT_BODY_BYTES" default:"1048576"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	positive := map[string]time.Duration{
		"CONNECT_IGNORE_WINDOW":   cfg.ConnectIgnoreWindow,
		"CLEAR_SESSION_EXTENSION": cfg.ClearSessionExtension,
		"WRITE_DEADLINE":          cfg.WriteDeadline,
		"PING_INTERVAL":           cfg.PingInterval,
		"PONG_DEADLINE":           cfg.PongDeadline,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if cfg.PingInterval >= cfg.PongDeadline {
		return fmt.Errorf("PING_INTERVAL must be shorter than PONG_DEADLINE")
	}
	if cfg.SendBufferSize < 1 {
		return fmt.Errorf("SEND_BUFFER_SIZE must be at least 1")
	}
	if cfg.MaxWebSocketConnections < 1 {
		return fmt.Errorf("MAX_WEBSOCKET_CONNECTIONS must be at least 1")
	}
	if cfg.MaxConnectionsPerIP < 1 {
		return fmt.Errorf("MAX_CONNECTIONS_PER_IP must be at least 1")
	}
	if cfg.ConnectionRate <= 0 {
		return fmt.Errorf("CONNECTION_RATE must be positive")
	}
	if cfg.ConnectionBurst < 1 {
		return fmt.Errorf("CONNECTION_BURST must be at least 1")
	}
	if cfg.MaxAlertBodyBytes < 1 {
		return fmt.Errorf("MAX_ALERT_BODY_BYTES must be at least 1")
	}

	return nil
}
