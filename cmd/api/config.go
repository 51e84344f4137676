package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config contains application-wide settings sourced from the environment.
type Config struct {
	Addr string

	TicketmasterAPIKey string
	JamBaseAPIKey      string

	SpotifyClientID     string
	SpotifyClientSecret string

	DatabaseURL string

	AllowedOrigins string

	LogLevel  string
	LogFormat string
}

func loadConfig() (Config, error) {
	_ = godotenv.Load("config/local.env")
	_ = godotenv.Load()

	cfg := Config{
		Addr:                fmt.Sprintf(":%s", envOrDefault("PORT", "8080")),
		TicketmasterAPIKey:  os.Getenv("TICKETMASTER_API_KEY"),
		JamBaseAPIKey:       os.Getenv("JAMBASE_API_KEY"),
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		AllowedOrigins:      envOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		LogFormat:           envOrDefault("LOG_FORMAT", "json"),
	}

	if cfg.TicketmasterAPIKey == "" && cfg.JamBaseAPIKey == "" {
		return Config{}, errors.New("at least one of TICKETMASTER_API_KEY or JAMBASE_API_KEY is required")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
