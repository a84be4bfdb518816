package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Store backends accepted by -store / STORE.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config is the server configuration. Flags win over environment variables,
// which win over the defaults.
type Config struct {
	Port        int
	Store       string
	SQLitePath  string
	DatabaseURL string
	LogLevel    log.Level
	CORSOrigins []string
}

// loadDotEnv loads the first .env found. Variables already set are kept.
func loadDotEnv() string {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// parseConfig reads flags from args with defaults taken from getenv.
func parseConfig(args []string, getenv func(string) string) (Config, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	port := fs.Int("port", envInt(getenv, "PORT", 8080), "HTTP server port")
	store := fs.String("store", envString(getenv, "STORE", StoreSQLite), "Store backend: memory, sqlite or postgres")
	dbPath := fs.String("db", envString(getenv, "SQLITE_PATH", "club.db"), "SQLite database path (\":memory:\" for in-memory)")
	dsn := fs.String("database-url", getenv("DATABASE_URL"), "PostgreSQL connection string")
	level := fs.String("log-level", envString(getenv, "LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	origins := fs.String("cors-origins", getenv("CORS_ORIGINS"), "Comma-separated allowed CORS origins")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:        *port,
		Store:       strings.ToLower(strings.TrimSpace(*store)),
		SQLitePath:  *dbPath,
		DatabaseURL: *dsn,
		CORSOrigins: splitList(*origins),
	}

	lvl, err := log.ParseLevel(*level)
	if err != nil {
		return Config{}, fmt.Errorf("invalid log level %q: %w", *level, err)
	}
	cfg.LogLevel = lvl

	switch cfg.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("store %q requires DATABASE_URL or -database-url", StorePostgres)
		}
	default:
		return Config{}, fmt.Errorf("unknown store %q", cfg.Store)
	}
	return cfg, nil
}

func envString(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(getenv func(string) string, key string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(getenv(key))); err == nil {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
