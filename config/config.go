// Package config loads process configuration from the environment, with an
// optional .env file.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	CatalogPath string // JSON snapshot holding the track catalog

	LogLevel string // debug, info, warn, error
	LogPath  string // file output; empty logs to stdout only

	BeatsPerCue    int // default auto-cue group size
	EnvelopePoints int // default cue envelope length
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first but never overrides variables already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		CatalogPath:    getEnv("QL_CATALOG_PATH", filepath.Join("data", "playlist.json")),
		LogLevel:       getEnv("QL_LOG_LEVEL", "info"),
		LogPath:        getEnv("QL_LOG_PATH", ""),
		BeatsPerCue:    getEnvInt("QL_BEATS_PER_CUE", 4),
		EnvelopePoints: getEnvInt("QL_ENVELOPE_POINTS", 100),
	}
}
