// Package config loads server and client settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ReadHeaderTimeout limits how long the server waits for request headers.
const ReadHeaderTimeout = 5 * time.Second

// ShutdownTimeout limits how long the server waits for in-flight requests
// during graceful shutdown.
const ShutdownTimeout = 5 * time.Second

type ServerConfig struct {
	Addr            string        `env:"WIZARD_ADDR" envDefault:":8080"`
	DBDriver        string        `env:"WIZARD_DB_DRIVER" envDefault:"sqlite"`
	DBDSN           string        `env:"WIZARD_DB_DSN" envDefault:"wizard.db"`
	UploadDir       string        `env:"WIZARD_UPLOAD_DIR" envDefault:"uploads"`
	SessionTTL      time.Duration `env:"WIZARD_SESSION_TTL" envDefault:"72h"`
	CleanupInterval time.Duration `env:"WIZARD_CLEANUP_INTERVAL" envDefault:"5m"`
	MaxRequestBytes int64         `env:"WIZARD_MAX_REQUEST_BYTES" envDefault:"33554432"`
	LogLevel        string        `env:"WIZARD_LOG_LEVEL" envDefault:"info"`
}

type ClientConfig struct {
	BaseURL     string        `env:"WIZARD_BASE_URL" envDefault:"http://localhost:8080"`
	StateDir    string        `env:"WIZARD_STATE_DIR"`
	HTTPTimeout time.Duration `env:"WIZARD_HTTP_TIMEOUT" envDefault:"15s"`
	LogLevel    string        `env:"WIZARD_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotEnv applies the given .env files to the process environment.
// Missing files are skipped and variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %q: %w", p, err)
		}
	}
	return nil
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := ParseEnv(&cfg); err != nil {
		return ServerConfig{}, err
	}

	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch cfg.DBDriver {
	case "memory", "sqlite", "postgres":
	default:
		return ServerConfig{}, fmt.Errorf("unsupported WIZARD_DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.SessionTTL <= 0 {
		return ServerConfig{}, fmt.Errorf("WIZARD_SESSION_TTL must be positive")
	}
	if cfg.CleanupInterval <= 0 {
		return ServerConfig{}, fmt.Errorf("WIZARD_CLEANUP_INTERVAL must be positive")
	}
	return cfg, nil
}

func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	if err := ParseEnv(&cfg); err != nil {
		return ClientConfig{}, err
	}

	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ClientConfig{}, fmt.Errorf("resolve state dir: %w", err)
		}
		cfg.StateDir = filepath.Join(home, ".wizard")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return ClientConfig{}, fmt.Errorf("WIZARD_BASE_URL is empty")
	}
	return cfg, nil
}
