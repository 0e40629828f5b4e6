package app

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"pagedesk/pkg/config"
)

func testConfig(t *testing.T) config.EffectiveConfigResult {
	t.Helper()
	cfg, err := config.ParseConfig([]byte(`
server:
  address: 127.0.0.1
  port: 9090
security:
  api_keys:
    admin: [root]
messenger:
  verify_token: v
  app_secret: s
pages:
  - id: p1
    name: Page One
    access_token: tok
sessions:
  - token: sess
    user: alice
    pages: [p1]
`))
	require.NoError(t, err)
	cfg.WebhookLog.Path = filepath.Join(t.TempDir(), "webhooks")
	eff := config.EffectiveConfigResult{Config: cfg, Addr: cfg.Addr(), Source: "config"}
	require.NoError(t, config.ValidateConfig(eff))
	return eff
}

func get(t *testing.T, h fasthttp.RequestHandler, path string, headers map[string]string) (int, string) {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		_ = srv.Shutdown()
		_ = ln.Close()
	}()

	c := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI("http://pagedesk.test" + path)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	require.NoError(t, c.DoTimeout(req, resp, 5*time.Second))
	return resp.StatusCode(), string(resp.Body())
}

func TestNewWiresComponents(t *testing.T) {
	a, err := New(testConfig(t), "1.2.3", "none", "unknown")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.deliveries.Close() })

	assert.Equal(t, stateStarting, a.State())
	assert.False(t, a.deliveries.InMemory())
	assert.Equal(t, config.DefaultQueueCapacity, a.queue.Cap())
	assert.Equal(t, config.DefaultMaxBodySize, int(a.eff.Config.Server.MaxBodySize))
	_, ok := a.sessions.PageToken("p1")
	assert.True(t, ok)
}

func TestHandlerHealthAndReadiness(t *testing.T) {
	a, err := New(testConfig(t), "1.2.3", "none", "unknown")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.deliveries.Close() })
	h := a.handler()

	status, body := get(t, h, "/healthz", nil)
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	status, body = get(t, h, "/readyz", nil)
	assert.Equal(t, fasthttp.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"status":"starting","version":"1.2.3"}`, body)

	a.setState(stateReady)
	status, _ = get(t, h, "/readyz", nil)
	assert.Equal(t, fasthttp.StatusOK, status)

	status, body = get(t, h, "/admin/nope", map[string]string{"X-API-Key": "root"})
	assert.Equal(t, fasthttp.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"not found"}`, body)
}

func TestShutdownBeforeRun(t *testing.T) {
	a, err := New(testConfig(t), "dev", "none", "unknown")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))
	assert.Equal(t, stateStopped, a.State())
}

func TestValidateConfigRejectsUnsizedQueue(t *testing.T) {
	eff := config.EffectiveConfigResult{Config: &config.Config{}, Addr: ":8080"}
	assert.Error(t, validateConfig(eff))
	assert.Error(t, validateConfig(config.EffectiveConfigResult{}))
}
