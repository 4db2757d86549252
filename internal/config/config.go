package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	DBPath      string
	ScrapersDir string

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string

	// Pipeline settings
	PipelineInterval time.Duration
	SweepInterval    time.Duration
	RetentionDays    int
	ScraperTimeout   time.Duration

	// Gemini settings
	GeminiAPIKey string
	GeminiModel  string

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		DBPath:           DefaultDBPath,
		ScrapersDir:      DefaultScrapersDir,
		ServerHost:       DefaultServerHost,
		ServerPort:       DefaultServerPort,
		APIKey:           GetEnvString("GPRESS_API_KEY", ""),
		PipelineInterval: time.Duration(DefaultPipelineInterval) * time.Minute,
		SweepInterval:    time.Duration(DefaultSweepInterval) * time.Minute,
		RetentionDays:    DefaultRetentionDays,
		ScraperTimeout:   time.Duration(DefaultScraperTimeout) * time.Minute,
		GeminiAPIKey:     GetEnvString("GEMINI_API_KEY", ""),
		GeminiModel:      GetEnvString("GPRESS_GEMINI_MODEL", DefaultGeminiModel),
		LogLevel:         logLevel,
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
