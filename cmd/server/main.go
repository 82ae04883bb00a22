package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"tablecast/internal/config"
	"tablecast/internal/events"
	"tablecast/internal/httpapi"
	"tablecast/internal/ingest"
	"tablecast/internal/nudge"
	"tablecast/internal/observability"
	"tablecast/internal/observability/logging"
	"tablecast/internal/ratelimit"
	"tablecast/internal/store"
	"tablecast/internal/summary"
	"tablecast/internal/transcribe"
	transcribegoogle "tablecast/internal/transcribe/google"
	transcribemock "tablecast/internal/transcribe/mock"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: os.Getenv("LOG_FORMAT"),
	})

	st, err := store.Open(cfg.Service.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Service.DBPath).Msg("Failed to open database")
	}
	defer st.Close()

	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicFinal:   cfg.Kafka.TopicFinal,
		TopicSummary: cfg.Kafka.TopicSummary,
		TopicNudge:   cfg.Kafka.TopicNudge,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()

	transcriber := newTranscriber(cfg)
	defer transcriber.Close()

	ingestHandler := ingest.NewHandler(st, transcriber, summary.NewExtractive(), publisher,
		cfg.Transcribe.Provider, ingest.Limits{
			MaxSegmentBytes: cfg.Ingest.MaxSegmentBytes,
			SummarizeEvery:  cfg.Ingest.SummarizeEvery,
		})

	limiter := ratelimit.New(ratelimit.NewMemoryStore())
	tracker := nudge.NewTracker(st, limiter, publisher, cfg.Nudge.DirectWindow, cfg.Nudge.BroadcastWindow)
	scheduler := nudge.NewScheduler(st, tracker)

	api := httpapi.New(st, ingestHandler, tracker, scheduler, cfg.Service.AdminToken)
	srv := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      api.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	obsServer := observability.NewServer(cfg.Observability.MetricsAddr)
	obsServer.Start()

	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("Tablecast server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability shutdown error")
	}
}

func newTranscriber(cfg *config.Config) transcribe.Adapter {
	switch cfg.Transcribe.Provider {
	case "google":
		adapter, err := transcribegoogle.New(context.Background(),
			cfg.Transcribe.LanguageCode, cfg.Transcribe.SampleRateHz)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Google Speech-to-Text")
		}
		return adapter
	default:
		return transcribemock.New()
	}
}
