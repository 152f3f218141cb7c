package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string
	APIToken    string
	ParamsFile  string
	RescoreCron string
	// SweepLimit bounds how many claims one scheduled sweep rescores.
	SweepLimit int
}

func Load() Config {
	return Config{
		Port:        envInt("ARBITER_PORT", 8760),
		NatsURL:     envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		APIToken:    envStr("ARBITER_API_TOKEN", ""),
		ParamsFile:  envStr("ARBITER_PARAMS_FILE", ""),
		RescoreCron: envStr("ARBITER_RESCORE_CRON", "@every 5m"),
		SweepLimit:  envInt("ARBITER_SWEEP_LIMIT", 500),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
