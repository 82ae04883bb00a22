// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for both the server and the device agent.
type Config struct {
	Service       ServiceConfig
	Kafka         KafkaConfig
	Transcribe    TranscribeConfig
	Ingest        IngestConfig
	Nudge         NudgeConfig
	Capture       CaptureConfig
	Connection    ConnectionConfig
	Agent         AgentConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds identity and listener settings for the backend.
type ServiceConfig struct {
	Principal  string
	HTTPPort   string
	AdminToken string
	DBPath     string
}

// KafkaConfig holds event publisher settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicFinal   string
	TopicSummary string
	TopicNudge   string
	Principal    string
}

// TranscribeConfig selects and tunes the speech-to-text provider.
type TranscribeConfig struct {
	Provider     string // mock, google
	LanguageCode string
	SampleRateHz int
}

// IngestConfig bounds segment ingestion and rolling summarization.
type IngestConfig struct {
	MaxSegmentBytes int64
	SummarizeEvery  int
	SummaryProvider string // mock
}

// NudgeConfig holds rate-limit windows for nudge creation.
type NudgeConfig struct {
	DirectWindow    time.Duration
	BroadcastWindow time.Duration
}

// CaptureConfig tunes the client-side capture pipeline.
type CaptureConfig struct {
	RotateInterval  time.Duration
	MinSegmentBytes int
	QueueCapacity   int
}

// ConnectionConfig tunes the client-side connection monitor.
type ConnectionConfig struct {
	ProbeInterval   time.Duration
	ProbeTimeout    time.Duration
	DegradedLatency time.Duration
	OfflineFailures int
}

// AgentConfig holds settings for the device agent binary.
type AgentConfig struct {
	ServerURL    string
	DeviceToken  string
	TableID      string
	PollInterval time.Duration
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	MetricsAddr string
}

// Load reads configuration from environment variables, applying defaults
// for anything unset.
func Load() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal:  envOrDefault("SERVICE_PRINCIPAL", "svc-tablecast"),
			HTTPPort:   envOrDefault("HTTP_PORT", "8080"),
			AdminToken: envOrDefault("ADMIN_TOKEN", ""),
			DBPath:     envOrDefault("DB_PATH", "tablecast.db"),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      envOrDefaultSlice("KAFKA_BROKERS", nil),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "table.transcript.final"),
			TopicSummary: envOrDefault("KAFKA_TOPIC_SUMMARY", "table.summary.rolling"),
			TopicNudge:   envOrDefault("KAFKA_TOPIC_NUDGE", "table.nudge.lifecycle"),
			Principal:    envOrDefault("SERVICE_PRINCIPAL", "svc-tablecast"),
		},
		Transcribe: TranscribeConfig{
			Provider:     envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode: envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz: envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
		},
		Ingest: IngestConfig{
			MaxSegmentBytes: envOrDefaultInt64("INGEST_MAX_SEGMENT_BYTES", 5*1024*1024),
			SummarizeEvery:  envOrDefaultInt("INGEST_SUMMARIZE_EVERY", 3),
			SummaryProvider: envOrDefault("SUMMARY_PROVIDER", "mock"),
		},
		Nudge: NudgeConfig{
			DirectWindow:    envOrDefaultDuration("NUDGE_DIRECT_WINDOW", 30*time.Second),
			BroadcastWindow: envOrDefaultDuration("NUDGE_BROADCAST_WINDOW", 60*time.Second),
		},
		Capture: CaptureConfig{
			RotateInterval:  envOrDefaultDuration("CAPTURE_ROTATE_INTERVAL", 10*time.Second),
			MinSegmentBytes: envOrDefaultInt("CAPTURE_MIN_SEGMENT_BYTES", 1024),
			QueueCapacity:   envOrDefaultInt("CAPTURE_QUEUE_CAPACITY", 12),
		},
		Connection: ConnectionConfig{
			ProbeInterval:   envOrDefaultDuration("CONN_PROBE_INTERVAL", 5*time.Second),
			ProbeTimeout:    envOrDefaultDuration("CONN_PROBE_TIMEOUT", 3*time.Second),
			DegradedLatency: envOrDefaultDuration("CONN_DEGRADED_LATENCY", 2*time.Second),
			OfflineFailures: envOrDefaultInt("CONN_OFFLINE_FAILURES", 3),
		},
		Agent: AgentConfig{
			ServerURL:    envOrDefault("AGENT_SERVER_URL", "http://localhost:8080"),
			DeviceToken:  envOrDefault("AGENT_DEVICE_TOKEN", ""),
			TableID:      envOrDefault("AGENT_TABLE_ID", ""),
			PollInterval: envOrDefaultDuration("AGENT_POLL_INTERVAL", 10*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultSlice(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
