package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"tablecast/internal/agent"
	"tablecast/internal/capture"
	"tablecast/internal/client"
	"tablecast/internal/config"
	"tablecast/internal/connection"
	"tablecast/internal/models"
	"tablecast/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	serverURL := flag.String("server", cfg.Agent.ServerURL, "Backend base URL")
	deviceToken := flag.String("token", cfg.Agent.DeviceToken, "Device token for this table")
	tableID := flag.String("table", cfg.Agent.TableID, "Table ID this device is registered to")
	autoAck := flag.Bool("auto-ack", false, "Acknowledge every received nudge immediately")
	flag.Parse()

	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: "console",
	})

	if *deviceToken == "" || *tableID == "" {
		log.Fatal().Msg("Device token and table ID are required (flags or AGENT_DEVICE_TOKEN / AGENT_TABLE_ID)")
	}

	backend := client.New(*serverURL, *deviceToken, *tableID)
	recorder := capture.NewSimulatedRecorder(cfg.Transcribe.SampleRateHz)

	sessionCfg := agent.Config{
		Capture: capture.Config{
			RotateInterval:  cfg.Capture.RotateInterval,
			MinSegmentBytes: cfg.Capture.MinSegmentBytes,
		},
		Connection: connection.Config{
			ProbeInterval:   cfg.Connection.ProbeInterval,
			ProbeTimeout:    cfg.Connection.ProbeTimeout,
			DegradedLatency: cfg.Connection.DegradedLatency,
			OfflineFailures: cfg.Connection.OfflineFailures,
		},
		QueueCapacity: cfg.Capture.QueueCapacity,
		PollInterval:  cfg.Agent.PollInterval,
	}

	var session *agent.Session
	onNudge := func(n *models.Nudge) {
		log.Info().
			Str("priority", string(n.Priority)).
			Str("message", n.Message).
			Msg("NUDGE")
		if *autoAck {
			if err := session.AckNudge(context.Background(), n.ID); err != nil {
				log.Warn().Err(err).Str("nudgeId", n.ID).Msg("Failed to acknowledge nudge")
			}
		}
	}

	session = agent.NewSession(backend, recorder, sessionCfg, onNudge)
	if err := session.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start capture session")
	}
	log.Info().Str("table", *tableID).Str("server", *serverURL).Msg("Device agent running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Stopping capture session")
	session.Stop()
}
