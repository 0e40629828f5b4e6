// Package admin serves operator endpoints under /admin.
package admin

import (
	"errors"

	"github.com/valyala/fasthttp"

	"pagedesk/internal/retention"
	"pagedesk/pkg/api/router"
	"pagedesk/pkg/api/utils"
	"pagedesk/pkg/ingest"
	"pagedesk/pkg/ingest/queue"
	"pagedesk/pkg/logger"
	"pagedesk/pkg/store"
	"pagedesk/pkg/webhooklog"
)

const (
	defaultWebhookLimit = 50
	maxWebhookLimit     = 500
)

// Handler serves /admin routes.
type Handler struct {
	Version    string
	Pages      *store.Registry
	Queue      *queue.Queue
	Processor  *ingest.Processor
	Deliveries *webhooklog.Log
	Retention  *retention.Manager
}

type queueStats struct {
	Depth    int    `json:"depth"`
	Capacity int    `json:"capacity"`
	Lanes    int    `json:"lanes"`
	Dropped  uint64 `json:"dropped"`
	InFlight int64  `json:"inFlight"`
	Paused   bool   `json:"paused"`
}

// Health handles GET /admin/health.
func (h *Handler) Health(ctx *fasthttp.RequestCtx) {
	router.WriteJSONOk(ctx, map[string]interface{}{"status": "ok", "version": h.Version})
}

// Stats handles GET /admin/stats.
func (h *Handler) Stats(ctx *fasthttp.RequestCtx) {
	out := map[string]interface{}{
		"pages":        h.Pages.Stats(),
		"pageCapacity": h.Pages.Capacity(),
		"queue": queueStats{
			Depth:    h.Queue.Len(),
			Capacity: h.Queue.Cap(),
			Lanes:    h.Queue.Lanes(),
			Dropped:  h.Queue.Dropped(),
			InFlight: h.Processor.InFlight(),
			Paused:   h.Processor.Paused(),
		},
	}
	if h.Deliveries != nil {
		n, err := h.Deliveries.Count()
		if err != nil {
			logger.Error("webhook_log_count_failed", "error", err)
			router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, "failed to read webhook log")
			return
		}
		out["webhookLog"] = map[string]interface{}{"deliveries": n, "inMemory": h.Deliveries.InMemory()}
	}
	if h.Retention != nil {
		if last, ok := h.Retention.Last(); ok {
			out["retention"] = last
		}
	}
	_ = router.WriteJSON(ctx, out)
}

// Webhooks handles GET /admin/webhooks.
func (h *Handler) Webhooks(ctx *fasthttp.RequestCtx) {
	if h.Deliveries == nil {
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "webhook log disabled")
		return
	}
	limit := utils.GetQueryInt(ctx, "limit", defaultWebhookLimit)
	if limit <= 0 {
		limit = defaultWebhookLimit
	}
	if limit > maxWebhookLimit {
		limit = maxWebhookLimit
	}
	if id := utils.GetQuery(ctx, "id"); id != "" {
		d, err := h.Deliveries.Get(id)
		if errors.Is(err, webhooklog.ErrNotFound) {
			router.WriteJSONError(ctx, fasthttp.StatusNotFound, "delivery not found")
			return
		}
		if err != nil {
			router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, "failed to read webhook log")
			return
		}
		_ = router.WriteJSON(ctx, d)
		return
	}
	list, err := h.Deliveries.Recent(limit)
	if err != nil {
		logger.Error("webhook_log_read_failed", "error", err)
		router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, "failed to read webhook log")
		return
	}
	if list == nil {
		list = []webhooklog.Delivery{}
	}
	router.WriteJSONOk(ctx, map[string]interface{}{"deliveries": list})
}

// RunRetentionCleanup handles POST /admin/jobs/purge.
func (h *Handler) RunRetentionCleanup(ctx *fasthttp.RequestCtx) {
	if h.Retention == nil {
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "retention not configured")
		return
	}
	logger.AuditInfo("admin_retention_run", "remote", ctx.RemoteAddr().String())
	rep, err := h.Retention.RunImmediate()
	if errors.Is(err, retention.ErrRunInProgress) {
		router.WriteJSONError(ctx, fasthttp.StatusConflict, err.Error())
		return
	}
	if err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}
	_ = router.WriteJSON(ctx, rep)
}

// PauseIngest handles POST /admin/ingest/pause.
func (h *Handler) PauseIngest(ctx *fasthttp.RequestCtx) {
	h.Processor.Pause()
	logger.AuditInfo("admin_ingest_paused", "remote", ctx.RemoteAddr().String())
	router.WriteJSONOk(ctx, map[string]interface{}{"paused": true})
}

// ResumeIngest handles POST /admin/ingest/resume.
func (h *Handler) ResumeIngest(ctx *fasthttp.RequestCtx) {
	h.Processor.Resume()
	logger.AuditInfo("admin_ingest_resumed", "remote", ctx.RemoteAddr().String())
	router.WriteJSONOk(ctx, map[string]interface{}{"paused": false})
}
