package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Server holds all configuration for the progression server.
type Server struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error

	// Skill catalog YAML; empty = built-in table
	CatalogPath string `yaml:"catalog_path"`

	Storage      StorageConfig      `yaml:"storage"`
	HTTP         HTTPConfig         `yaml:"http"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`

	Progression ProgressionConfig `yaml:"progression"`
	XP          XPConfig          `yaml:"xp"`
	Stacks      StacksConfig      `yaml:"stacks"`
	Composer    ComposerConfig    `yaml:"composer"`

	// Access levels by player id for chat commands (0 = user).
	Access map[string]int `yaml:"access"`
}

// StorageConfig selects the durable store.
type StorageConfig struct {
	Driver     string         `yaml:"driver"`
	SQLitePath string         `yaml:"sqlite_path"`
	Database   DatabaseConfig `yaml:"database"`
	Redis      RedisConfig    `yaml:"redis"` // cooldowns only, optional
	Timeout    time.Duration  `yaml:"timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// RedisConfig enables the Redis cooldown store.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// HTTPConfig configures the JSON API and the websocket feed.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	// bcrypt hash of the admin token (see cmd/tokenhash); empty disables admin routes
	AdminTokenHash string        `yaml:"admin_token_hash"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

// HousekeepingConfig sets the intervals of background loops. Zero uses the built-in default.
type HousekeepingConfig struct {
	FlushInterval           time.Duration `yaml:"flush_interval"`
	CooldownCleanupInterval time.Duration `yaml:"cooldown_cleanup_interval"`
	StackEvictInterval      time.Duration `yaml:"stack_evict_interval"`
	// IdleRelease frees players with no activity for this long; 0 keeps them.
	IdleRelease time.Duration `yaml:"idle_release"`
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		LogLevel: "info",
		Storage: StorageConfig{
			Driver:     DriverPostgres,
			SQLitePath: "data/progression.db",
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "survival",
				Password: "survival",
				DBName:   "survival",
				SSLMode:  "disable",
			},
			Redis: RedisConfig{
				Addr:   "127.0.0.1:6379",
				Prefix: "survival:cd",
			},
			Timeout: 2 * time.Second,
		},
		HTTP: HTTPConfig{
			Enabled:      true,
			Addr:         "0.0.0.0:8080",
			WriteTimeout: 5 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Housekeeping: HousekeepingConfig{
			FlushInterval:           10 * time.Second,
			CooldownCleanupInterval: 5 * time.Minute,
			StackEvictInterval:      30 * time.Second,
			IdleRelease:             10 * time.Minute,
		},
		Progression: DefaultProgression(),
		XP:          DefaultXP(),
		Stacks:      DefaultStacks(),
		Composer:    DefaultComposer(),
		Access:      map[string]int{},
	}
}

// LoadServer loads server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Server) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for driver %q", DriverSQLite)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if c.Storage.Redis.Enabled && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("storage.redis.addr is required when redis is enabled")
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required when http is enabled")
	}

	if err := c.Progression.validate(); err != nil {
		return err
	}
	if c.XP.Threshold <= 0 {
		return fmt.Errorf("xp.threshold must be positive, got %d", c.XP.Threshold)
	}
	if c.Stacks.MaxStacks <= 0 || c.Stacks.Window <= 0 {
		return fmt.Errorf("stacks.window and stacks.max_stacks must be positive")
	}
	return c.Composer.validate()
}
