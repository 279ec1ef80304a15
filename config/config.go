package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultOrigins are the local frontends allowed by CORS in every environment.
var DefaultOrigins = []string{
	"http://localhost:3001",
	"http://localhost:5173",
	"http://localhost:5174",
	"http://127.0.0.1:5173",
	"http://127.0.0.1:5174",
}

type Config struct {
	Port     string
	Env      string
	LogLevel string

	Database DatabaseConfig
	Storage  StorageConfig
	CORS     CORSConfig
	Deploy   DeployConfig
	Server   ServerConfig
}

type DatabaseConfig struct {
	Type        string
	URL         string
	ReplicaURL  string
	SQLitePath  string
	AutoMigrate bool
}

type StorageConfig struct {
	// Ephemeral is set on read-only deployments; uploads then go to the temp directory.
	Ephemeral bool
}

type CORSConfig struct {
	Origins  []string
	Suffixes []string
}

type DeployConfig struct {
	HookURL string
	Token   string
	Timeout time.Duration
}

type ServerConfig struct {
	RateLimit    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

const defaultDSN = "host=localhost user=postgres password=postgres dbname=portfolio port=5432 sslmode=disable"

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "3001")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_TYPE", "postgres")
	v.SetDefault("SQLITE_PATH", "portfolio.db")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("ACCEPTED_ORIGIN_SUFFIXES", ".vercel.app")
	v.SetDefault("DEPLOY_TIMEOUT_SECONDS", 30)
	v.SetDefault("READ_TIMEOUT_SECONDS", 180)
	v.SetDefault("WRITE_TIMEOUT_SECONDS", 180)
	v.SetDefault("IDLE_TIMEOUT_SECONDS", 180)
	return v
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	v := newViper()

	cfg := &Config{
		Port:     strings.TrimSpace(v.GetString("PORT")),
		Env:      strings.ToLower(v.GetString("APP_ENV")),
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),
		Database: DatabaseConfig{
			Type:        strings.ToLower(strings.TrimSpace(v.GetString("DB_TYPE"))),
			URL:         firstNonEmpty(v.GetString("DATABASE_URL"), v.GetString("POSTGRES_URL"), defaultDSN),
			ReplicaURL:  v.GetString("DATABASE_REPLICA_URL"),
			SQLitePath:  v.GetString("SQLITE_PATH"),
			AutoMigrate: v.GetBool("AUTO_MIGRATE"),
		},
		Storage: StorageConfig{
			Ephemeral: v.GetString("VERCEL") != "",
		},
		CORS: CORSConfig{
			Origins:  origins(v.GetString("ACCEPTED_ORIGINS"), v.GetString("VITE_APP_URL")),
			Suffixes: splitCSV(v.GetString("ACCEPTED_ORIGIN_SUFFIXES")),
		},
		Deploy: DeployConfig{
			HookURL: v.GetString("DEPLOY_HOOK_URL"),
			Token:   v.GetString("DEPLOY_HOOK_TOKEN"),
			Timeout: seconds(v, "DEPLOY_TIMEOUT_SECONDS"),
		},
		Server: ServerConfig{
			RateLimit:    strings.TrimSpace(v.GetString("RATE_LIMIT")),
			ReadTimeout:  seconds(v, "READ_TIMEOUT_SECONDS"),
			WriteTimeout: seconds(v, "WRITE_TIMEOUT_SECONDS"),
			IdleTimeout:  seconds(v, "IDLE_TIMEOUT_SECONDS"),
		},
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("PORT must be numeric, got %q", cfg.Port)
	}
	switch cfg.Database.Type {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q (want postgres or sqlite)", cfg.Database.Type)
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

func origins(accepted, frontend string) []string {
	out := append([]string{}, DefaultOrigins...)
	out = append(out, splitCSV(accepted)...)
	if frontend = strings.TrimSpace(frontend); frontend != "" {
		out = append(out, strings.TrimRight(frontend, "/"))
	}
	return out
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func seconds(v *viper.Viper, key string) time.Duration {
	n := v.GetInt(key)
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
