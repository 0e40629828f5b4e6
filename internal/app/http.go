package app

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"pagedesk/pkg/api"
	apirouter "pagedesk/pkg/api/router"
	"pagedesk/pkg/config/banner"
	"pagedesk/pkg/logger"
	"pagedesk/pkg/router"
)

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}

// readyzHandlerFast handles the /readyz endpoint.
func (a *App) readyzHandlerFast(ctx *fasthttp.RequestCtx) {
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	st := a.State()
	if st != stateReady {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		_ = apirouter.WriteJSON(ctx, map[string]string{"status": st, "version": ver})
		return
	}
	_ = apirouter.WriteJSON(ctx, map[string]string{"status": "ok", "version": ver})
}

// healthzHandlerFast handles the /healthz endpoint.
func (a *App) healthzHandlerFast(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	_, _ = ctx.WriteString("{\"status\":\"ok\"}")
}

func (a *App) deps() api.Deps {
	return api.Deps{
		Version:    a.version,
		Messenger:  a.eff.Config.Messenger,
		Queue:      a.queue,
		Processor:  a.proc,
		Pages:      a.pages,
		Sessions:   a.sessions,
		Query:      a.query,
		Sender:     a.graph,
		Deliveries: a.deliveries,
		Retention:  a.retention,
	}
}

// handler builds the routed handler behind the auth gateway.
func (a *App) handler() fasthttp.RequestHandler {
	r := router.New()
	r.GET("/healthz", a.healthzHandlerFast)
	r.GET("/readyz", a.readyzHandlerFast)
	api.RegisterRoutes(r, a.deps())
	r.NotFound(func(ctx *fasthttp.RequestCtx) {
		apirouter.WriteJSONError(ctx, fasthttp.StatusNotFound, "not found")
	})
	return a.gateway.Middleware(r.Handler)
}

func (a *App) tlsEnabled() bool {
	tls := a.eff.Config.Server.TLS
	return tls.CertFile != "" && tls.KeyFile != ""
}

// newServer applies the server limits to h.
func (a *App) newServer(h fasthttp.RequestHandler) *fasthttp.Server {
	const (
		readBufferSize       = 64 * 1024        // 64 KiB read buffer per connection
		concurrency          = 0                // unlimited concurrency (0 means unlimited in fasthttp)
		readTimeout          = 10 * time.Second // timeout for reading request
		writeTimeout         = 10 * time.Second // timeout for writing response
		idleTimeout          = 30 * time.Second // max keep-alive idle duration per connection
		maxKeepaliveDuration = 2 * time.Minute  // max duration for keep-alive connection
	)
	return &fasthttp.Server{
		Name:                 "pagedesk",
		Handler:              h,
		ReadBufferSize:       readBufferSize,
		MaxRequestBodySize:   int(a.eff.Config.Server.MaxBodySize.Int64()),
		Concurrency:          concurrency,
		ReduceMemoryUsage:    true,
		ReadTimeout:          readTimeout,
		WriteTimeout:         writeTimeout,
		IdleTimeout:          idleTimeout,
		MaxKeepaliveDuration: maxKeepaliveDuration,
		Logger:               fasthttpLogger{},
	}
}

// startHTTP builds and starts the fasthttp server, returning a channel that delivers errors.
func (a *App) startHTTP(_ context.Context) <-chan error {
	a.srvFast = a.newServer(a.handler())

	errCh := make(chan error, 1)
	go func() {
		tls := a.eff.Config.Server.TLS
		if a.tlsEnabled() {
			errCh <- a.srvFast.ListenAndServeTLS(a.eff.Addr, tls.CertFile, tls.KeyFile)
			return
		}
		errCh <- a.srvFast.ListenAndServe(a.eff.Addr)
	}()
	return errCh
}

// fasthttpLogger routes server errors into the structured log.
type fasthttpLogger struct{}

func (fasthttpLogger) Printf(format string, args ...interface{}) {
	logger.Warn("fasthttp", "msg", fmt.Sprintf(format, args...))
}
