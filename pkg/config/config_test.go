package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  address: 127.0.0.1
  port: 9090
  max_body_size: 2MB
messenger:
  verify_token: hub-secret
  app_secret: s3cr3t
  profile_timeout: 1500ms
store:
  max_messages_per_page: 200
webhook_log:
  cache_size: 16MiB
retention:
  enabled: true
  period: 7d
pages:
  - id: "111"
    name: Bakery
    access_token: tok-111
sessions:
  - token: sess-a
    user: alice
    pages: ["111"]
`

func TestParseConfigYAML(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.EqualValues(t, 2*1000*1000, cfg.Server.MaxBodySize)
	assert.EqualValues(t, 16*1024*1024, cfg.WebhookLog.CacheSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Messenger.ProfileTimeout.Duration())
	assert.Equal(t, []string{"111"}, cfg.PageIDs())
	assert.Equal(t, "alice", cfg.Sessions[0].User)
}

func TestValidateConfigFillsDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ValidateConfig(EffectiveConfigResult{Config: cfg}))

	assert.EqualValues(t, DefaultMaxBodySize, cfg.Server.MaxBodySize)
	assert.Equal(t, DefaultMaxMessagesPerPage, cfg.Store.MaxMessagesPerPage)
	assert.Equal(t, DefaultQueueCapacity, cfg.Ingest.QueueCapacity)
	assert.Equal(t, DefaultLanes, cfg.Ingest.Lanes)
	assert.Equal(t, DefaultProfileTimeout, cfg.Messenger.ProfileTimeout.Duration())
	assert.Equal(t, DefaultRetentionCron, cfg.Retention.Cron)
	assert.Equal(t, DefaultRetentionPeriod, cfg.Retention.Period)
}

func TestValidateConfigRejects(t *testing.T) {
	cases := map[string]*Config{
		"half tls":        {Server: ServerConfig{TLS: TLSConfig{CertFile: "cert.pem"}}},
		"bad cron":        {Retention: RetentionConfig{Enabled: true, Cron: "every minute"}},
		"bad period":      {Retention: RetentionConfig{Enabled: true, Period: "soon"}},
		"page without id": {Pages: []PageConfig{{Name: "x"}}},
		"duplicate page":  {Pages: []PageConfig{{ID: "1"}, {ID: "1"}}},
		"unknown page":    {Pages: []PageConfig{{ID: "1"}}, Sessions: []SessionConfig{{Token: "t", Pages: []string{"2"}}}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidateConfig(EffectiveConfigResult{Config: cfg}))
		})
	}
}

func TestParsePeriod(t *testing.T) {
	d, err := ParsePeriod("7d")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	d, err = ParsePeriod("90m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	for _, bad := range []string{"", "0d", "-1h", "xd"} {
		_, err := ParsePeriod(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("PAGEDESK_SERVER_ADDR", "0.0.0.0:7070")
	t.Setenv("PAGEDESK_VERIFY_TOKEN", "vt")
	t.Setenv("PAGEDESK_PAGES", "111:tok-111:Bakery, 222:tok-222")
	t.Setenv("PAGEDESK_SESSIONS", "sess-a=111|222")
	t.Setenv("PAGEDESK_RETENTION_DRY_RUN", "yes")

	cfg, res := ParseConfigEnvs()
	assert.True(t, res.EnvUsed)
	assert.Equal(t, "0.0.0.0:7070", cfg.Addr())
	assert.Equal(t, "vt", cfg.Messenger.VerifyToken)
	assert.Equal(t, []PageConfig{
		{ID: "111", Name: "Bakery", AccessToken: "tok-111"},
		{ID: "222", AccessToken: "tok-222"},
	}, cfg.Pages)
	assert.Equal(t, []SessionConfig{{Token: "sess-a", Pages: []string{"111", "222"}}}, cfg.Sessions)
	assert.True(t, cfg.Retention.DryRun)
}

func TestLoadEffectiveConfigSourceOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	flags, err := ParseConfigFlags([]string{"--config", path})
	require.NoError(t, err)
	fileCfg, found, err := ParseConfigFile(flags)
	require.NoError(t, err)
	require.True(t, found)

	eff, err := LoadEffectiveConfig(flags, fileCfg, found, &Config{}, EnvResult{})
	require.NoError(t, err)
	assert.Equal(t, "config", eff.Source)
	assert.Equal(t, "127.0.0.1:9090", eff.Addr)

	flags, err = ParseConfigFlags([]string{"--addr", "127.0.0.1:6000", "--config", filepath.Join(dir, "missing.yaml")})
	require.NoError(t, err)
	_, err = LoadEffectiveConfig(flags, &Config{}, false, &Config{}, EnvResult{})
	assert.Error(t, err, "explicit --config must exist")

	flags, err = ParseConfigFlags([]string{"--addr", "127.0.0.1:6000"})
	require.NoError(t, err)
	envCfg := &Config{Messenger: MessengerConfig{VerifyToken: "from-env"}}
	eff, err = LoadEffectiveConfig(flags, &Config{}, false, envCfg, EnvResult{EnvUsed: true})
	require.NoError(t, err)
	assert.Equal(t, "flags", eff.Source)
	assert.Equal(t, "127.0.0.1:6000", eff.Config.Addr())
	assert.Equal(t, "from-env", eff.Config.Messenger.VerifyToken)
}
