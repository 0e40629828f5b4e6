package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort               = 8080
	DefaultMaxBodySize        = 5 * 1024 * 1024
	DefaultMaxMessagesPerPage = 1000
	DefaultQueueCapacity      = 4096
	DefaultLanes              = 8
	DefaultResultBuffer       = 1024
	DefaultGraphTimeout       = 5 * time.Second
	DefaultProfileTimeout     = 3 * time.Second
	DefaultRetentionCron      = "0 * * * *"
	DefaultRetentionPeriod    = "24h"
	DefaultSlowThreshold      = 200 * time.Millisecond
	DefaultRateRPS            = 50
	DefaultRateBurst          = 100
	DefaultWebhookLogCache    = 8 * 1024 * 1024
)

// Addr returns the HTTP server address as host:port.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	port := c.Server.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig parses YAML config bytes.
func ParseConfig(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("PAGEDESK_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// PageIDs returns the ids of the configured pages.
func (c *Config) PageIDs() []string {
	ids := make([]string, 0, len(c.Pages))
	for _, p := range c.Pages {
		ids = append(ids, p.ID)
	}
	return ids
}
