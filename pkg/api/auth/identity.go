package auth

import (
	"pagedesk/pkg/config"
)

// caller role
type Role int

const (
	RoleUnauth Role = iota
	RoleSession
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleSession:
		return "session"
	case RoleAdmin:
		return "admin"
	default:
		return "unauth"
	}
}

// security config
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	AdminKeys      map[string]struct{}
}

// SecConfigFrom builds the gateway settings from the service config.
func SecConfigFrom(cfg *config.Config) SecConfig {
	sc := SecConfig{
		AllowedOrigins: append([]string(nil), cfg.Security.CORS.AllowedOrigins...),
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		IPWhitelist:    append([]string(nil), cfg.Security.IPWhitelist...),
		AdminKeys:      make(map[string]struct{}, len(cfg.Security.APIKeys.Admin)),
	}
	for _, k := range cfg.Security.APIKeys.Admin {
		if k != "" {
			sc.AdminKeys[k] = struct{}{}
		}
	}
	return sc
}
