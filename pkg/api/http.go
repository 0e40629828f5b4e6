package api

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"pagedesk/internal/retention"
	"pagedesk/pkg/api/auth"
	adminRoutes "pagedesk/pkg/api/routes/admin"
	frontendRoutes "pagedesk/pkg/api/routes/frontend"
	messengerRoutes "pagedesk/pkg/api/routes/messenger"
	"pagedesk/pkg/config"
	"pagedesk/pkg/ingest"
	"pagedesk/pkg/ingest/queue"
	"pagedesk/pkg/query"
	"pagedesk/pkg/router"
	"pagedesk/pkg/session"
	"pagedesk/pkg/store"
	"pagedesk/pkg/webhooklog"
)

var (
	gcPauseTotal = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pagedesk_gc_pause_total_ns",
			Help: "Total GC pause time in nanoseconds.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.PauseTotalNs)
		},
	)

	heapAlloc = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pagedesk_heap_alloc_bytes",
			Help: "Current heap allocation in bytes.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		},
	)

	numGC = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pagedesk_gc_cycles_total",
			Help: "Total number of GC cycles.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.NumGC)
		},
	)
)

func init() {
	// go_goroutines is already exported by the default Go collector
	prometheus.MustRegister(gcPauseTotal)
	prometheus.MustRegister(heapAlloc)
	prometheus.MustRegister(numGC)
}

// Deps is everything the routes read from or write to.
type Deps struct {
	Version    string
	Messenger  config.MessengerConfig
	Queue      *queue.Queue
	Processor  *ingest.Processor
	Pages      *store.Registry
	Sessions   *session.Store
	Query      *query.Service
	Sender     frontendRoutes.Sender
	Deliveries *webhooklog.Log
	Retention  *retention.Manager
}

// wrapHTTPHandler wraps an http.Handler to work with fasthttp.
func wrapHTTPHandler(h http.Handler) fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(h)
}

// RegisterRoutes wires all API routes onto the provided router.
func RegisterRoutes(r *router.Router, d Deps) {
	hook := &messengerRoutes.Handler{
		VerifyToken: d.Messenger.VerifyToken,
		AppSecret:   d.Messenger.AppSecret,
		Queue:       d.Queue,
	}
	// a nil *webhooklog.Log must not become a non-nil interface
	if d.Deliveries != nil {
		hook.Deliveries = d.Deliveries
	}
	front := &frontendRoutes.Handler{
		Query:    d.Query,
		Sessions: d.Sessions,
		Pages:    d.Pages,
		Sender:   d.Sender,
	}
	admin := &adminRoutes.Handler{
		Version:    d.Version,
		Pages:      d.Pages,
		Queue:      d.Queue,
		Processor:  d.Processor,
		Deliveries: d.Deliveries,
		Retention:  d.Retention,
	}

	// platform webhook
	r.GET("/webhook", hook.Verify)
	r.POST("/webhook", hook.Receive)

	// dashboard api
	r.GET("/api/pages", front.ListPages)
	r.GET("/api/messages/{pageId}", front.Messages)
	r.GET("/api/conversations/{pageId}", front.Conversations)
	r.POST("/api/mark-read/{pageId}/{senderId}", front.MarkRead)
	r.POST("/api/send-message/{pageId}", front.SendMessage)
	r.POST("/api/send-otn/{pageId}", front.SendOTN)

	// admin data routes
	r.GET("/admin/health", admin.Health)
	r.GET("/admin/stats", admin.Stats)
	r.GET("/admin/webhooks", admin.Webhooks)

	// admin job routes
	r.POST("/admin/jobs/purge", admin.RunRetentionCleanup)
	r.POST("/admin/ingest/pause", admin.PauseIngest)
	r.POST("/admin/ingest/resume", admin.ResumeIngest)

	// admin debug routes
	r.GET("/admin/debug/prometheus", wrapHTTPHandler(promhttp.Handler()))
	r.GET("/admin/debug/pprof/", wrapHTTPHandler(http.HandlerFunc(pprof.Index)))
	r.GET("/admin/debug/pprof/cmdline", wrapHTTPHandler(http.HandlerFunc(pprof.Cmdline)))
	r.GET("/admin/debug/pprof/profile", wrapHTTPHandler(http.HandlerFunc(pprof.Profile)))
	r.GET("/admin/debug/pprof/symbol", wrapHTTPHandler(http.HandlerFunc(pprof.Symbol)))
	r.GET("/admin/debug/pprof/trace", wrapHTTPHandler(http.HandlerFunc(pprof.Trace)))
	r.GET("/admin/debug/pprof/{profile}", pprofNamed)
}

// pprofNamed serves runtime profiles such as heap and goroutine.
func pprofNamed(ctx *fasthttp.RequestCtx) {
	name, _ := ctx.UserValue("profile").(string)
	wrapHTTPHandler(pprof.Handler(name))(ctx)
}

// Handler returns the routed handler behind the auth gateway.
func Handler(gw *auth.Gateway, d Deps) fasthttp.RequestHandler {
	r := router.New()
	RegisterRoutes(r, d)
	return gw.Middleware(r.Handler)
}
