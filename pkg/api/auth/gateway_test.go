package auth

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func newCtx(method, path, remote string, headers map[string]string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	ctx.Init(&req, &net.TCPAddr{IP: net.ParseIP(remote), Port: 4000}, nil)
	return &ctx
}

func serve(t *testing.T, cfg SecConfig) (func(*fasthttp.RequestCtx), *int) {
	gw := NewGateway(cfg)
	t.Cleanup(gw.Close)
	calls := 0
	return gw.Middleware(func(ctx *fasthttp.RequestCtx) { calls++ }), &calls
}

func TestGatewayPublicPaths(t *testing.T) {
	h, calls := serve(t, SecConfig{})

	for _, tc := range []struct{ method, path string }{
		{fasthttp.MethodGet, "/webhook"},
		{fasthttp.MethodPost, "/webhook"},
		{fasthttp.MethodGet, "/healthz"},
		{fasthttp.MethodGet, "/readyz"},
	} {
		ctx := newCtx(tc.method, tc.path, "10.0.0.1", nil)
		h(ctx)
		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), tc.path)
		assert.Equal(t, "unauth", string(ctx.Request.Header.Peek("X-Role-Name")))
	}
	assert.Equal(t, 4, *calls)

	ctx := newCtx(fasthttp.MethodGet, "/api/pages", "10.0.0.1", nil)
	h(ctx)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, 4, *calls)
}

func TestGatewayRoles(t *testing.T) {
	h, _ := serve(t, SecConfig{AdminKeys: map[string]struct{}{"root": {}}})

	ctx := newCtx(fasthttp.MethodGet, "/admin/stats", "10.0.0.1", map[string]string{"X-API-Key": "root"})
	h(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "admin", string(ctx.Request.Header.Peek("X-Role-Name")))

	ctx = newCtx(fasthttp.MethodGet, "/admin/stats", "10.0.0.1", map[string]string{"X-API-Key": "guess"})
	h(ctx)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

	ctx = newCtx(fasthttp.MethodGet, "/api/pages", "10.0.0.1", map[string]string{"Cookie": "pagedesk_session=s1"})
	h(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "session", string(ctx.Request.Header.Peek("X-Role-Name")))

	ctx = newCtx(fasthttp.MethodGet, "/api/pages", "10.0.0.1", map[string]string{"Authorization": "Bearer root"})
	h(ctx)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
}

func TestGatewayRateLimitPerToken(t *testing.T) {
	h, calls := serve(t, SecConfig{RPS: 0.001, Burst: 1})

	hdr := map[string]string{"X-Session-Token": "s1"}
	ctx := newCtx(fasthttp.MethodGet, "/api/pages", "10.0.0.1", hdr)
	h(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	ctx = newCtx(fasthttp.MethodGet, "/api/pages", "10.0.0.1", hdr)
	h(ctx)
	assert.Equal(t, fasthttp.StatusTooManyRequests, ctx.Response.StatusCode())

	ctx = newCtx(fasthttp.MethodGet, "/api/pages", "10.0.0.1", map[string]string{"X-Session-Token": "s2"})
	h(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, 2, *calls)
}

func TestGatewayCORSAndWhitelist(t *testing.T) {
	h, calls := serve(t, SecConfig{
		AllowedOrigins: []string{"https://desk.example"},
		IPWhitelist:    []string{"10.0.0.1"},
	})

	ctx := newCtx(fasthttp.MethodOptions, "/api/pages", "10.0.0.9", map[string]string{"Origin": "https://desk.example"})
	h(ctx)
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	assert.Equal(t, "https://desk.example", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))

	ctx = newCtx(fasthttp.MethodGet, "/healthz", "10.0.0.9", nil)
	h(ctx)
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())

	ctx = newCtx(fasthttp.MethodPost, "/webhook", "10.0.0.9", nil)
	h(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, 1, *calls)
}

func TestLimiterPoolEvictsIdle(t *testing.T) {
	p := newLimiterPool(SecConfig{RPS: 10, Burst: 1})
	defer p.Shutdown()
	p.ttl = -1
	assert.True(t, p.Allow("a"))
	assert.Equal(t, 1, p.size())
	p.evictIdle()
	assert.Zero(t, p.size())
}
