package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all service configuration loaded from environment variables
// and, optionally, a YAML file named by CONFIG_FILE.
type Config struct {
	Port            string
	StoreDriver     string
	PostgresDSN     string
	SQLitePath      string
	MongoURI        string
	MongoDB         string
	JWTSecret       string
	BcryptCost      int
	StoreTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	LogLevel        string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Load reads configuration. Environment variables win over the config file,
// which wins over defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("store_driver", DriverPostgres)
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("sqlite_path", "expenses.db")
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_db", "expense_tracker")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("bcrypt_cost", bcrypt.DefaultCost)
	v.SetDefault("store_timeout", 5*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("cors_origins", "http://localhost:3000")
	v.SetDefault("log_level", "info")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Port:            v.GetString("port"),
		StoreDriver:     strings.ToLower(v.GetString("store_driver")),
		PostgresDSN:     v.GetString("postgres_dsn"),
		SQLitePath:      v.GetString("sqlite_path"),
		MongoURI:        v.GetString("mongo_uri"),
		MongoDB:         v.GetString("mongo_db"),
		JWTSecret:       v.GetString("jwt_secret"),
		BcryptCost:      v.GetInt("bcrypt_cost"),
		StoreTimeout:    v.GetDuration("store_timeout"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		CORSOrigins:     splitList(v.GetString("cors_origins")),
		LogLevel:        v.GetString("log_level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and consistent.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}

	switch c.StoreDriver {
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres store")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
