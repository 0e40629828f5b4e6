package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Security   SecurityConfig   `yaml:"security"`
	Logging    LoggingConfig    `yaml:"logging"`
	Messenger  MessengerConfig  `yaml:"messenger"`
	Store      StoreConfig      `yaml:"store"`
	Ingest     IngestConfig     `yaml:"ingest"`
	WebhookLog WebhookLogConfig `yaml:"webhook_log"`
	Retention  RetentionConfig  `yaml:"retention"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Pages      []PageConfig     `yaml:"pages"`
	Sessions   []SessionConfig  `yaml:"sessions"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address     string    `yaml:"address"`
	Port        int       `yaml:"port"`
	MaxBodySize SizeBytes `yaml:"max_body_size"`
	TLS         TLSConfig `yaml:"tls"`
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
		Admin []string `yaml:"admin"`
	} `yaml:"api_keys"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// AuditDir enables the JSON audit sink used by retention runs.
	AuditDir string `yaml:"audit_dir"`
}

// MessengerConfig holds the webhook subscription and Graph API settings.
type MessengerConfig struct {
	VerifyToken    string   `yaml:"verify_token"`
	AppSecret      string   `yaml:"app_secret"`
	GraphBaseURL   string   `yaml:"graph_base_url"`
	GraphVersion   string   `yaml:"graph_version"`
	GraphTimeout   Duration `yaml:"graph_timeout"`
	ProfileTimeout Duration `yaml:"profile_timeout"`
}

// StoreConfig sizes the in-memory per-page stores.
type StoreConfig struct {
	MaxMessagesPerPage int `yaml:"max_messages_per_page"`
}

// IngestConfig sizes the webhook event queue and its workers.
type IngestConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
	// Lanes is the number of page shards, one worker each.
	Lanes int `yaml:"lanes"`
	// ResultBuffer is the capacity of the processed-result channel.
	ResultBuffer int `yaml:"result_buffer"`
}

// WebhookLogConfig configures the delivery log. An empty path keeps it in memory.
type WebhookLogConfig struct {
	Path      string    `yaml:"path"`
	CacheSize SizeBytes `yaml:"cache_size"`
}

// RetentionConfig holds configuration for the delivery log purge runner.
type RetentionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	Period  string `yaml:"period"`
	DryRun  bool   `yaml:"dry_run"`
	Paused  bool   `yaml:"paused"`
}

// TelemetryConfig controls slow operation reporting.
type TelemetryConfig struct {
	SlowThreshold Duration `yaml:"slow_threshold"`
}

// PageConfig is a page the service may act for.
type PageConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	AccessToken string `yaml:"access_token"`
}

// SessionConfig grants a session token access to a set of pages.
type SessionConfig struct {
	Token string   `yaml:"token"`
	User  string   `yaml:"user"`
	Pages []string `yaml:"pages"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	v, err := parseSize(node.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	v, err := parseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func parseSize(raw string) (SizeBytes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		return SizeBytes(v), nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return SizeBytes(i), nil
	}
	return 0, fmt.Errorf("invalid size value: %q", raw)
}

func parseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		return Duration(td), nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(f * float64(time.Second))), nil
	}
	return 0, fmt.Errorf("invalid duration value: %q", raw)
}

// ParsePeriod parses a retention period. It accepts Go durations plus a
// day suffix such as "7d".
func ParsePeriod(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid period: %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid period: %q", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("period must be positive: %q", raw)
	}
	return d, nil
}
