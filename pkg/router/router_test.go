package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func request(method, path string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	return &ctx
}

func TestRouterParams(t *testing.T) {
	r := New()
	var page, sender string
	r.POST("/api/mark-read/{pageId}/{senderId}", func(ctx *fasthttp.RequestCtx) {
		page, _ = ctx.UserValue("pageId").(string)
		sender, _ = ctx.UserValue("senderId").(string)
	})

	ctx := request(fasthttp.MethodPost, "/api/mark-read/p1/u9")
	r.Handler(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "p1", page)
	assert.Equal(t, "u9", sender)
}

func TestRouterRegistrationOrder(t *testing.T) {
	r := New()
	hit := ""
	r.GET("/admin/debug/pprof/cmdline", func(*fasthttp.RequestCtx) { hit = "literal" })
	r.GET("/admin/debug/pprof/{profile}", func(*fasthttp.RequestCtx) { hit = "param" })

	r.Handler(request(fasthttp.MethodGet, "/admin/debug/pprof/cmdline"))
	assert.Equal(t, "literal", hit)
	r.Handler(request(fasthttp.MethodGet, "/admin/debug/pprof/heap"))
	assert.Equal(t, "param", hit)
}

func TestRouterMethodNotAllowed(t *testing.T) {
	r := New()
	r.GET("/webhook", func(*fasthttp.RequestCtx) {})
	r.POST("/webhook", func(*fasthttp.RequestCtx) {})

	ctx := request(fasthttp.MethodPut, "/webhook")
	r.Handler(ctx)
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
	assert.Equal(t, "GET, POST", string(ctx.Response.Header.Peek("Allow")))
}

func TestRouterNotFound(t *testing.T) {
	r := New()
	r.GET("/api/messages/{pageId}", func(*fasthttp.RequestCtx) {})

	ctx := request(fasthttp.MethodGet, "/api/messages")
	r.Handler(ctx)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	called := false
	r.NotFound(func(ctx *fasthttp.RequestCtx) {
		called = true
		ctx.SetStatusCode(fasthttp.StatusTeapot)
	})
	ctx = request(fasthttp.MethodGet, "/nope")
	r.Handler(ctx)
	assert.True(t, called)
	assert.Equal(t, fasthttp.StatusTeapot, ctx.Response.StatusCode())
}
