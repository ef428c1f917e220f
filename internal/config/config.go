package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerAddr         string        `mapstructure:"SERVER_ADDR"`
	DatabaseDriver     string        `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	LockTTL            time.Duration `mapstructure:"LOCK_TTL"`
	LockWait           time.Duration `mapstructure:"LOCK_WAIT"`
	CORSAllowedOrigins string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	PollInterval       time.Duration `mapstructure:"POLL_INTERVAL"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
}

var AppConfig *Config

// LoadConfig loads the configuration from a .env file and environment variables.
func LoadConfig() {
	cfg, err := Load(".")
	if err != nil {
		slog.Error("Unable to decode config", "error", err)
		panic(err)
	}
	AppConfig = cfg
}

// Load reads <dir>/.env (if present) and the environment into a Config.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		slog.Warn(".env file not found, loading from environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "fitbuddy.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOCK_TTL", 5*time.Second)
	v.SetDefault("LOCK_WAIT", 3*time.Second)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("POLL_INTERVAL", 30*time.Second)
	v.SetDefault("LOG_LEVEL", "info")
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
