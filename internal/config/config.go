package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Env          string
	ListenAddr   string
	DatabaseURL  string
	RedisAddr    string
	PolicyFile   string
	EvalWorkers  int
	EvalSchedule string
	OverdueDays  int
	LogLevel     string
	LogFormat    string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(v); err == nil {
			return out
		}
	}
	return def
}

func Load() (Config, error) {
	cfg := Config{
		Env:          getenv("APP_ENV", "development"),
		ListenAddr:   getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		PolicyFile:   getenv("POLICY_FILE", "policies.yaml"),
		EvalWorkers:  getenvInt("EVAL_WORKERS", 4),
		EvalSchedule: os.Getenv("EVAL_SCHEDULE"),
		OverdueDays:  getenvInt("LOCKOUT_OVERDUE_DAYS", 30),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    getenv("LOG_FORMAT", "json"),
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}
