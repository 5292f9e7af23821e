package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverJSON     = "json"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the application's configuration model.
type Config struct {
	Env     string        `yaml:"env"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type StorageConfig struct {
	// json, sqlite or postgres. Empty picks postgres when DatabaseURL is set, json otherwise.
	Driver string `yaml:"driver"`
	// Directory holding users.json, tweets.json and notifications.json
	DataDir    string `yaml:"dataDir"`
	SQLitePath string `yaml:"sqlitePath"`
	// If empty, read from env DATABASE_URL
	DatabaseURL string `yaml:"databaseURL"`
}

type AuthConfig struct {
	BcryptCost int `yaml:"bcryptCost"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Env: "development",
		Storage: StorageConfig{
			DataDir:    "./data",
			SQLitePath: "./twinsa.db",
		},
		Auth:    AuthConfig{BcryptCost: 10},
		Metrics: MetricsConfig{Addr: ""},
	}
}

// ResolveEnv fills in config fields from environment variables. Environment wins
// over the file for everything but unset variables.
func (c *Config) ResolveEnv() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	c.Env = getEnv("TWINSA_ENV", c.Env)
	c.Storage.Driver = getEnv("TWINSA_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.DataDir = getEnv("TWINSA_DATA_DIR", c.Storage.DataDir)
	c.Storage.SQLitePath = getEnv("TWINSA_SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.DatabaseURL = getEnv("DATABASE_URL", c.Storage.DatabaseURL)
	c.Metrics.Addr = getEnv("METRICS_ADDR", c.Metrics.Addr)
	c.Auth.BcryptCost = getEnvInt("TWINSA_BCRYPT_COST", c.Auth.BcryptCost)

	if c.Storage.Driver == "" {
		if c.Storage.DatabaseURL != "" {
			c.Storage.Driver = DriverPostgres
		} else {
			c.Storage.Driver = DriverJSON
		}
	}
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverJSON:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.dataDir is required for the json driver")
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlitePath is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcryptCost must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads YAML config from path on top of the defaults. A missing file is not an
// error. Environment overrides are applied and the result validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return cfg, err
		}
	}
	cfg.ResolveEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
