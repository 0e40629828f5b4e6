package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"pagedesk/internal/retention"
	"pagedesk/pkg/api/auth"
	"pagedesk/pkg/config"
	"pagedesk/pkg/graph"
	"pagedesk/pkg/ingest"
	"pagedesk/pkg/ingest/queue"
	"pagedesk/pkg/logger"
	"pagedesk/pkg/profile"
	"pagedesk/pkg/query"
	"pagedesk/pkg/session"
	"pagedesk/pkg/state"
	"pagedesk/pkg/store"
	"pagedesk/pkg/telemetry"
	"pagedesk/pkg/webhooklog"
)

const (
	stateStarting     = "starting"
	stateReady        = "ready"
	stateShuttingDown = "shutting_down"
	stateStopped      = "stopped"
)

// App groups server state and components.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	srvFast *fasthttp.Server
	mu      sync.RWMutex
	state   string

	pages      *store.Registry
	sessions   *session.Store
	graph      *graph.Client
	query      *query.Service
	queue      *queue.Queue
	proc       *ingest.Processor
	observer   *ingest.Observer
	deliveries *webhooklog.Log
	retention  *retention.Manager
	gateway    *auth.Gateway
}

// New builds every component without starting any goroutine. Call Run to
// start ingestion, retention and the HTTP server.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	if err := validateConfig(eff); err != nil {
		return nil, err
	}
	cfg := eff.Config

	paths := state.PathsFor(cfg.WebhookLog.Path, cfg.Logging.AuditDir)
	if err := state.EnsureStateDirs(paths); err != nil {
		return nil, fmt.Errorf("failed to prepare state directories: %w", err)
	}
	if paths.Audit != "" {
		if err := logger.AttachAuditFileSink(paths.Audit); err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	telemetry.SetSlowThreshold(cfg.Telemetry.SlowThreshold.Duration())

	a := &App{eff: eff, version: version, commit: commit, buildDate: buildDate, state: stateStarting}

	a.sessions = session.New(cfg.Pages, cfg.Sessions)
	a.graph = graph.New(graph.Options{
		BaseURL: cfg.Messenger.GraphBaseURL,
		Version: cfg.Messenger.GraphVersion,
		Timeout: cfg.Messenger.GraphTimeout.Duration(),
	})
	resolver := profile.NewResolver(a.sessions, a.graph, cfg.Messenger.ProfileTimeout.Duration())

	a.pages = store.NewRegistry(cfg.Store.MaxMessagesPerPage)
	a.query = query.New(a.sessions, a.pages)
	a.queue = queue.New(cfg.Ingest.QueueCapacity, cfg.Ingest.Lanes)
	a.proc = ingest.NewProcessor(a.queue, ingest.NewDispatcher(a.pages, resolver), cfg.Ingest.ResultBuffer)

	wlog, err := webhooklog.Open(webhooklog.Options{Path: paths.WebhookLog, CacheSize: cfg.WebhookLog.CacheSize.Int64()})
	if err != nil {
		return nil, fmt.Errorf("failed to open webhook log: %w", err)
	}
	a.deliveries = wlog

	rm, err := retention.New(cfg.Retention, wlog)
	if err != nil {
		_ = wlog.Close()
		return nil, err
	}
	a.retention = rm
	a.gateway = auth.NewGateway(auth.SecConfigFrom(cfg))

	registerQueueGauges(a.queue)
	a.logSummary()
	return a, nil
}

// Run starts ingestion, retention and the HTTP server, and blocks until ctx
// is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	// the observer outlives ctx so it can record results drained on shutdown
	a.observer = ingest.NewObserver(a.proc.Results(), a.deliveries)
	go a.observer.Run(context.Background())
	a.proc.Start()

	a.retention.Start(ctx)

	errCh := a.startHTTP(ctx)
	a.setState(stateReady)
	logger.Info("server_ready", "addr", a.eff.Addr, "tls", a.tlsEnabled())

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) setState(s string) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// State returns the lifecycle state reported by /readyz.
func (a *App) State() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *App) logSummary() {
	cfg := a.eff.Config
	mode := "memory"
	if !a.deliveries.InMemory() {
		mode = cfg.WebhookLog.Path
	}
	logger.LogConfigSummary("ingest_summary", []string{
		fmt.Sprintf("pages: %d", len(cfg.Pages)),
		fmt.Sprintf("sessions: %d", len(cfg.Sessions)),
		fmt.Sprintf("messages_per_page: %s", humanize.Comma(int64(cfg.Store.MaxMessagesPerPage))),
		fmt.Sprintf("queue_capacity: %s", humanize.Comma(int64(a.queue.Cap()))),
		fmt.Sprintf("queue_lanes: %d", a.queue.Lanes()),
		fmt.Sprintf("profile_timeout: %s", cfg.Messenger.ProfileTimeout.Duration()),
		fmt.Sprintf("webhook_log: %s", mode),
	})
}

// registerQueueGauges exports queue depth. A second App in the same process
// keeps the first registration.
func registerQueueGauges(q *queue.Queue) {
	gauges := ingest.QueueGauges(
		func() float64 { return float64(q.Len()) },
		func() float64 { return float64(q.Cap()) },
	)
	for _, g := range gauges {
		if err := prometheus.Register(g); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				logger.Warn("metrics_register_failed", "error", err)
			}
		}
	}
}
