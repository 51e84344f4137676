package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"synth/internal/eventapi"
	"synth/internal/eventsearch"
	"synth/internal/http/middleware"
	"synth/internal/httpapi"
	"synth/internal/logging"
	"synth/internal/store"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fallback := logging.New(logging.Config{})
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	ctx := context.Background()

	var dataStore *store.Store
	if cfg.DatabaseURL != "" {
		db, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("database unavailable")
		}
		defer db.Close()
		dataStore = store.New(db)
		logger.Info().Msg("event store enabled")
	} else {
		logger.Info().Msg("DATABASE_URL not set, running without event store")
	}

	service := newSearchService(cfg, dataStore, logger)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newHTTPHandler(cfg, service, dataStore, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("event search API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("server stopped")
}

func newSearchService(cfg Config, dataStore *store.Store, logger zerolog.Logger) *eventsearch.Service {
	if cfg.TicketmasterAPIKey == "" {
		logger.Warn().Msg("TICKETMASTER_API_KEY not set, Ticketmaster results disabled")
	}
	if cfg.JamBaseAPIKey == "" {
		logger.Warn().Msg("JAMBASE_API_KEY not set, JamBase results disabled")
	}

	ticketmaster := eventapi.NewTicketmasterClient(cfg.TicketmasterAPIKey)
	jambase := eventapi.NewJamBaseClient(cfg.JamBaseAPIKey)

	var genres eventapi.GenreResolver
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		genres = eventapi.NewSpotifyClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
		logger.Info().Msg("Spotify genre enrichment enabled")
	}

	var eventStore eventsearch.EventStore
	if dataStore != nil {
		eventStore = dataStore
	}

	return eventsearch.NewService(ticketmaster, jambase, jambase, genres, eventStore, logger)
}

func newHTTPHandler(cfg Config, service *eventsearch.Service, dataStore *store.Store, logger zerolog.Logger) http.Handler {
	var writer httpapi.EventWriter
	if dataStore != nil {
		writer = dataStore
	}

	router := httpapi.New(service, writer, logger).Routes()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	handler := middleware.RequestLogging(logger)(router)
	return middleware.CORS(cfg.AllowedOrigins)(handler)
}
