package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

func getenvDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// getenvPositive is getenvInt for values that only make sense above zero.
func getenvPositive(key string, def int) int {
	n := getenvInt(key, def)
	if n <= 0 {
		slog.Warn("non-positive value in environment, using default", "key", key, "value", n, "default", def)
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
