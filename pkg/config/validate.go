package config

import (
	"fmt"
	"os"

	"github.com/adhocore/gronx"

	"pagedesk/pkg/logger"
)

// set defaults, fail fast on critical errors
func ValidateConfig(eff EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("effective config is nil")
	}

	// TLS cert/key presence check if one is set
	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}
	if cfg.Server.MaxBodySize <= 0 {
		cfg.Server.MaxBodySize = DefaultMaxBodySize
	}

	if cfg.Security.RateLimit.RPS <= 0 {
		cfg.Security.RateLimit.RPS = DefaultRateRPS
	}
	if cfg.Security.RateLimit.Burst <= 0 {
		cfg.Security.RateLimit.Burst = DefaultRateBurst
	}

	m := &cfg.Messenger
	if m.VerifyToken == "" {
		logger.Warn("webhook_verify_token_missing", "hint", "GET /webhook subscriptions will be rejected")
	}
	if m.AppSecret == "" {
		logger.Warn("webhook_app_secret_missing", "hint", "webhook signatures will not be checked")
	}
	if m.GraphTimeout <= 0 {
		m.GraphTimeout = Duration(DefaultGraphTimeout)
	}
	if m.ProfileTimeout <= 0 {
		m.ProfileTimeout = Duration(DefaultProfileTimeout)
	}

	if cfg.Store.MaxMessagesPerPage <= 0 {
		cfg.Store.MaxMessagesPerPage = DefaultMaxMessagesPerPage
	}
	if cfg.Ingest.QueueCapacity <= 0 {
		cfg.Ingest.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.Ingest.Lanes <= 0 {
		cfg.Ingest.Lanes = DefaultLanes
	}
	if cfg.Ingest.ResultBuffer <= 0 {
		cfg.Ingest.ResultBuffer = DefaultResultBuffer
	}
	if cfg.WebhookLog.CacheSize <= 0 {
		cfg.WebhookLog.CacheSize = DefaultWebhookLogCache
	}
	if cfg.Telemetry.SlowThreshold <= 0 {
		cfg.Telemetry.SlowThreshold = Duration(DefaultSlowThreshold)
	}

	seen := make(map[string]bool, len(cfg.Pages))
	for i, p := range cfg.Pages {
		if p.ID == "" {
			return fmt.Errorf("pages[%d]: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("pages[%d]: duplicate page id %s", i, p.ID)
		}
		seen[p.ID] = true
	}
	for i, s := range cfg.Sessions {
		if s.Token == "" {
			return fmt.Errorf("sessions[%d]: token is required", i)
		}
		for _, id := range s.Pages {
			if !seen[id] {
				return fmt.Errorf("sessions[%d]: unknown page %s", i, id)
			}
		}
	}

	// Retention defaults and cron validation
	ret := &cfg.Retention
	if ret.Cron == "" {
		ret.Cron = DefaultRetentionCron
	}
	if ret.Period == "" {
		ret.Period = DefaultRetentionPeriod
	}
	if ret.Enabled {
		if !gronx.IsValid(ret.Cron) {
			return fmt.Errorf("invalid retention.cron: not a valid cron expression")
		}
		if _, err := ParsePeriod(ret.Period); err != nil {
			return fmt.Errorf("invalid retention.period: %w", err)
		}
	}

	return nil
}
