package app

import (
	"fmt"

	"pagedesk/pkg/config"
	"pagedesk/pkg/logger"
)

// validateConfig performs quick, fail-fast checks on a config that already
// passed config.ValidateConfig. Keep checks light and focused so callers can
// surface user-friendly errors.
func validateConfig(eff config.EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("effective config is nil")
	}
	if eff.Addr == "" {
		return fmt.Errorf("listen address is empty: set --addr, PAGEDESK_SERVER_ADDR, or server.address/server.port in config")
	}
	if cfg.Ingest.QueueCapacity <= 0 || cfg.Ingest.Lanes <= 0 {
		return fmt.Errorf("ingest queue is not sized: run config.ValidateConfig first")
	}
	if cfg.Store.MaxMessagesPerPage <= 0 {
		return fmt.Errorf("store.max_messages_per_page must be positive")
	}

	for _, p := range cfg.Pages {
		if p.AccessToken == "" {
			logger.Warn("page_access_token_missing", "page", p.ID, "hint", "sender profiles fall back and sends return 404")
		}
	}
	if len(cfg.Sessions) == 0 {
		logger.Warn("no_sessions_configured", "hint", "the /api routes will answer 401")
	}
	return nil
}
