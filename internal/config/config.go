package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/example/procure/internal/db"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Cache drivers
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config represents the procure configuration
type Config struct {
	Store StoreConfig `yaml:"store"`
	Cache CacheConfig `yaml:"cache"`
	Log   LogConfig   `yaml:"log"`
}

// StoreConfig selects and locates the request store.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path,omitempty"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
}

// CacheConfig selects the scope cache.
type CacheConfig struct {
	Driver    string        `yaml:"driver"`
	RedisAddr string        `yaml:"redis_addr,omitempty"`
	RedisDB   int           `yaml:"redis_db,omitempty"`
	TTL       time.Duration `yaml:"ttl,omitempty"` // 0 keeps entries until invalidated
}

// LogConfig controls the zerolog logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a working single-node setup: SQLite under ~/.procure and
// an in-process scope cache.
func Default() *Config {
	path, err := db.DefaultPath()
	if err != nil {
		path = filepath.Join(".procure", "procure.db")
	}
	return &Config{
		Store: StoreConfig{Driver: DriverSQLite, SQLitePath: path},
		Cache: CacheConfig{Driver: CacheMemory},
		Log:   LogConfig{Level: "info", Pretty: true},
	}
}

// ConfigPath returns the config file location under dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, ".procure", "config.yaml")
}

// LoadConfig builds the configuration for dir.
// Resolution order: defaults, then dir/.procure/config.yaml when present, then
// PROCURE_* environment variables (a .env file in dir is loaded first and never
// overrides variables already set).
func LoadConfig(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ConfigPath(dir))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	vars := map[string]*string{
		"PROCURE_STORE_DRIVER": &cfg.Store.Driver,
		"PROCURE_SQLITE_PATH":  &cfg.Store.SQLitePath,
		"PROCURE_POSTGRES_DSN": &cfg.Store.PostgresDSN,
		"PROCURE_CACHE_DRIVER": &cfg.Cache.Driver,
		"PROCURE_REDIS_ADDR":   &cfg.Cache.RedisAddr,
		"PROCURE_LOG_LEVEL":    &cfg.Log.Level,
	}
	for key, dst := range vars {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("PROCURE_LOG_PRETTY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PROCURE_LOG_PRETTY %q: %w", v, err)
		}
		cfg.Log.Pretty = b
	}
	if v, ok := os.LookupEnv("PROCURE_CACHE_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PROCURE_CACHE_TTL %q: %w", v, err)
		}
		cfg.Cache.TTL = d
	}
	return nil
}

// Validate checks that the selected drivers have what they need.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q (want %s or %s)", c.Store.Driver, DriverSQLite, DriverPostgres)
	}

	switch c.Cache.Driver {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("unknown cache driver %q (want %s or %s)", c.Cache.Driver, CacheMemory, CacheRedis)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	return nil
}

// SaveConfig writes config.yaml to directory
func SaveConfig(dir string, cfg *Config) error {
	procureDir := filepath.Join(dir, ".procure")
	if err := os.MkdirAll(procureDir, 0755); err != nil {
		return fmt.Errorf("failed to create .procure dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(dir), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
