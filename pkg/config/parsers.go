package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// holds parsed command-line flag values and which were set
type Flags struct {
	Addr   string
	Config string
	Set    map[string]bool
}

// holds the results of applying environment overrides
type EnvResult struct {
	EnvUsed bool
}

// holds the result of LoadEffectiveConfig
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	Source string // "flags", "config", or "env"
}

// parses command-line flags and returns them as a Flags struct
func ParseConfigFlags(args []string) (Flags, error) {
	fs := flag.NewFlagSet("pagedesk", flag.ContinueOnError)
	addrPtr := fs.String("addr", ":8080", "HTTP listen address")
	cfgPtr := fs.String("config", "./config.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	// record which flags were set explicitly
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, Config: *cfgPtr, Set: setFlags}, nil
}

// loads config from file, returns config, found bool, and error
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

var envNames = []string{
	"SERVER_ADDR", "SERVER_ADDRESS", "SERVER_PORT", "MAX_BODY_SIZE", "TLS_CERT", "TLS_KEY",
	"CORS_ORIGINS", "RATE_RPS", "RATE_BURST", "IP_WHITELIST", "API_ADMIN_KEYS",
	"LOG_LEVEL", "AUDIT_DIR",
	"VERIFY_TOKEN", "APP_SECRET", "GRAPH_BASE_URL", "GRAPH_VERSION", "GRAPH_TIMEOUT", "PROFILE_TIMEOUT",
	"MAX_MESSAGES_PER_PAGE", "QUEUE_CAPACITY", "INGEST_LANES",
	"WEBHOOK_LOG_PATH", "WEBHOOK_LOG_CACHE_SIZE",
	"RETENTION_ENABLED", "RETENTION_CRON", "RETENTION_PERIOD", "RETENTION_DRY_RUN",
	"TELEMETRY_SLOW_THRESHOLD",
	"PAGES", "SESSIONS",
}

// loads PAGEDESK_* environment variables into a new Config
func ParseConfigEnvs() (*Config, EnvResult) {
	envs := make(map[string]string, len(envNames))
	envUsed := false
	for _, name := range envNames {
		v := strings.TrimSpace(os.Getenv("PAGEDESK_" + name))
		envs[name] = v
		if v != "" {
			envUsed = true
		}
	}
	envCfg := &Config{}

	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	parseBool := func(v string) bool {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			return true
		default:
			return false
		}
	}

	parseInt := func(v string) int {
		n, _ := strconv.Atoi(v)
		return n
	}

	envDuration := func(v string) Duration {
		d, _ := parseDuration(v)
		return d
	}

	if v := envs["SERVER_ADDR"]; v != "" {
		if h, p, err := net.SplitHostPort(v); err == nil {
			envCfg.Server.Address = h
			envCfg.Server.Port = parseInt(p)
		} else {
			envCfg.Server.Address = v
		}
	} else {
		envCfg.Server.Address = envs["SERVER_ADDRESS"]
		envCfg.Server.Port = parseInt(envs["SERVER_PORT"])
	}
	if v := envs["MAX_BODY_SIZE"]; v != "" {
		envCfg.Server.MaxBodySize, _ = parseSize(v)
	}
	envCfg.Server.TLS.CertFile = envs["TLS_CERT"]
	envCfg.Server.TLS.KeyFile = envs["TLS_KEY"]

	envCfg.Security.CORS.AllowedOrigins = parseList(envs["CORS_ORIGINS"])
	if v := envs["RATE_RPS"]; v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			envCfg.Security.RateLimit.RPS = f
		}
	}
	envCfg.Security.RateLimit.Burst = parseInt(envs["RATE_BURST"])
	envCfg.Security.IPWhitelist = parseList(envs["IP_WHITELIST"])
	envCfg.Security.APIKeys.Admin = parseList(envs["API_ADMIN_KEYS"])

	envCfg.Logging.Level = envs["LOG_LEVEL"]
	envCfg.Logging.AuditDir = envs["AUDIT_DIR"]

	envCfg.Messenger.VerifyToken = envs["VERIFY_TOKEN"]
	envCfg.Messenger.AppSecret = envs["APP_SECRET"]
	envCfg.Messenger.GraphBaseURL = envs["GRAPH_BASE_URL"]
	envCfg.Messenger.GraphVersion = envs["GRAPH_VERSION"]
	envCfg.Messenger.GraphTimeout = envDuration(envs["GRAPH_TIMEOUT"])
	envCfg.Messenger.ProfileTimeout = envDuration(envs["PROFILE_TIMEOUT"])

	envCfg.Store.MaxMessagesPerPage = parseInt(envs["MAX_MESSAGES_PER_PAGE"])
	envCfg.Ingest.QueueCapacity = parseInt(envs["QUEUE_CAPACITY"])
	envCfg.Ingest.Lanes = parseInt(envs["INGEST_LANES"])

	envCfg.WebhookLog.Path = envs["WEBHOOK_LOG_PATH"]
	if v := envs["WEBHOOK_LOG_CACHE_SIZE"]; v != "" {
		envCfg.WebhookLog.CacheSize, _ = parseSize(v)
	}

	envCfg.Retention.Enabled = parseBool(envs["RETENTION_ENABLED"])
	envCfg.Retention.Cron = envs["RETENTION_CRON"]
	envCfg.Retention.Period = envs["RETENTION_PERIOD"]
	envCfg.Retention.DryRun = parseBool(envs["RETENTION_DRY_RUN"])

	envCfg.Telemetry.SlowThreshold = envDuration(envs["TELEMETRY_SLOW_THRESHOLD"])

	// PAGEDESK_PAGES=id:token[:name],...
	for _, item := range parseList(envs["PAGES"]) {
		parts := strings.SplitN(item, ":", 3)
		if len(parts) < 2 {
			continue
		}
		p := PageConfig{ID: parts[0], AccessToken: parts[1]}
		if len(parts) == 3 {
			p.Name = parts[2]
		}
		envCfg.Pages = append(envCfg.Pages, p)
	}
	// PAGEDESK_SESSIONS=token=page1|page2,...
	for _, item := range parseList(envs["SESSIONS"]) {
		tok, pages, ok := strings.Cut(item, "=")
		if !ok || tok == "" {
			continue
		}
		envCfg.Sessions = append(envCfg.Sessions, SessionConfig{Token: tok, Pages: strings.Split(pages, "|")})
	}

	return envCfg, EnvResult{EnvUsed: envUsed}
}

// decides which single source to use (flags, config file, or env). if
// --config is set, only the config file is used; otherwise flags if set;
// else config file if present; else env
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config, envRes EnvResult) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	if flags.Set["config"] {
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.Source = "config"
		return res, nil
	}

	if flags.Set["addr"] {
		// flags only carry the address; everything else comes from the
		// file when present, otherwise env
		base := envCfg
		if fileExists {
			base = fileCfg
		}
		out := *base
		h, p, err := net.SplitHostPort(flags.Addr)
		if err != nil {
			return res, fmt.Errorf("invalid --addr %q: %w", flags.Addr, err)
		}
		out.Server.Address = h
		out.Server.Port, _ = strconv.Atoi(p)
		res.Config = &out
		res.Addr = flags.Addr
		res.Source = "flags"
		return res, nil
	}

	if fileExists {
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.Source = "config"
		return res, nil
	}
	res.Config = envCfg
	res.Addr = envCfg.Addr()
	res.Source = "env"
	return res, nil
}
