package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds runtime key sets for use by other packages.
type RuntimeConfig struct {
	BackendKeys map[string]struct{}
	SigningKeys map[string]struct{}
}

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	LLM       LLMConfig       `yaml:"llm"`
	Stream    StreamConfig    `yaml:"stream"`
	Retention RetentionConfig `yaml:"retention"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	DBPath  string `yaml:"db_path"`
	// HealthAddr, when set, starts a separate fasthttp listener serving
	// only /healthz and /readyz (useful when the main listener is behind
	// auth-terminating proxies).
	HealthAddr string    `yaml:"health_addr"`
	TLS        TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig holds security related settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
	APIKeys     struct {
		Backend  []string `yaml:"backend"`
		Frontend []string `yaml:"frontend"`
		Admin    []string `yaml:"admin"`
	} `yaml:"api_keys"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LLMConfig selects and configures the generation provider.
type LLMConfig struct {
	// Provider is "openai" or "scripted" (deterministic, for tests/dev).
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// EmbedModel is the embeddings model; defaults to a small embedding
	// model when empty.
	EmbedModel string `yaml:"embed_model"`
	// BaseURL overrides the provider endpoint (proxies, self-hosted).
	BaseURL string `yaml:"base_url"`
	// Instructions is the system prompt prepended to every generation.
	Instructions string `yaml:"instructions"`
}

// StreamConfig tunes the live-stream hub.
type StreamConfig struct {
	// Broker is "local" or "nats".
	Broker  string `yaml:"broker"`
	NATSURL string `yaml:"nats_url"`
	// ReplayBufferMax caps the per-stream replay buffer; events beyond the
	// cap drop the oldest deltas for resumers (live tail is unaffected).
	ReplayBufferMax SizeBytes `yaml:"replay_buffer_max"`
	// SubscriberTimeout is how long a publish waits on a slow subscriber
	// before dropping it.
	SubscriberTimeout Duration `yaml:"subscriber_timeout"`
	// Linger keeps a finished stream's replay buffer around so late
	// resumers still observe the full stream before getting 204s.
	Linger Duration `yaml:"linger"`
}

// RetentionConfig holds configuration for the stream-record sweeper.
type RetentionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	// StaleAfter marks active records without updates for this long as
	// errored (abandoned generations).
	StaleAfter Duration `yaml:"stale_after"`
	// PruneAfter deletes done/errored status docs older than this.
	PruneAfter Duration `yaml:"prune_after"`
	DryRun     bool     `yaml:"dry_run"`
}

// TelemetryConfig tunes the request tracer.
type TelemetryConfig struct {
	SampleRate    float64  `yaml:"sample_rate"`
	SlowThreshold Duration `yaml:"slow_threshold"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly
// strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration wraps time.Duration supporting YAML strings like "100ms" or
// plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
