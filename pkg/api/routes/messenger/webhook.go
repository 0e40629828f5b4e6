// Package messenger serves the platform-facing webhook endpoints.
package messenger

import (
	"errors"

	"github.com/valyala/fasthttp"

	"pagedesk/pkg/api/utils"
	"pagedesk/pkg/ingest"
	"pagedesk/pkg/ingest/queue"
	"pagedesk/pkg/logger"
	"pagedesk/pkg/telemetry"
	"pagedesk/pkg/webhook"
	"pagedesk/pkg/webhooklog"
)

const ackBody = "EVENT_RECEIVED"

// Deliveries records accepted deliveries. *webhooklog.Log satisfies it.
type Deliveries interface {
	Append(d webhooklog.Delivery) (webhooklog.Delivery, error)
	RecordResult(id string, ok bool, errMsg string) error
}

// Handler serves GET and POST /webhook.
type Handler struct {
	VerifyToken string
	AppSecret   string
	Queue       *queue.Queue
	// Deliveries is optional.
	Deliveries Deliveries
}

// Verify answers the subscription handshake.
func (h *Handler) Verify(ctx *fasthttp.RequestCtx) {
	mode := utils.GetQuery(ctx, "hub.mode")
	token := utils.GetQuery(ctx, "hub.verify_token")
	challenge := string(ctx.QueryArgs().Peek("hub.challenge"))

	if mode == "" || token == "" {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	if mode != "subscribe" || h.VerifyToken == "" || token != h.VerifyToken {
		logger.Warn("webhook_verify_rejected", "mode", mode, "remote", ctx.RemoteAddr().String())
		ctx.SetStatusCode(fasthttp.StatusForbidden)
		return
	}
	logger.Info("webhook_verified")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString(challenge)
}

// Receive accepts a delivery, queues its events and acknowledges without
// waiting for them to be applied.
func (h *Handler) Receive(ctx *fasthttp.RequestCtx) {
	tr := telemetry.Track("webhook.receive")
	defer tr.Finish()

	body := ctx.PostBody()
	sig := string(ctx.Request.Header.Peek(webhook.SignatureHeader))
	if err := webhook.VerifySignature(body, sig, h.AppSecret); err != nil {
		logger.Warn("webhook_signature_mismatch", "remote", ctx.RemoteAddr().String(), "bytes", len(body))
		ctx.SetStatusCode(fasthttp.StatusForbidden)
		return
	}

	payload, err := webhook.Decode(body)
	if err != nil {
		logger.Warn("webhook_decode_failed", "error", err, "bytes", len(body))
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	if payload.Object != webhook.ObjectPage {
		logger.Debug("webhook_object_ignored", "object", payload.Object)
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	tr.Mark("decode")

	events := webhook.Events(payload)
	deliveryID := h.logDelivery(payload, len(events), len(body))
	accepted := ingest.Submit(h.Queue, deliveryID, events)
	if dropped := len(events) - accepted; dropped > 0 && deliveryID != "" {
		for i := 0; i < dropped; i++ {
			if err := h.Deliveries.RecordResult(deliveryID, false, queue.ErrQueueFull.Error()); err != nil && !errors.Is(err, webhooklog.ErrNotFound) {
				logger.Warn("webhook_log_update_failed", "delivery", deliveryID, "error", err)
			}
		}
	}
	tr.Mark("enqueue")

	logger.Debug("webhook_received", "delivery", deliveryID, "entries", len(payload.Entry), "events", len(events), "accepted", accepted)
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString(ackBody)
}

// logDelivery records the delivery before any of its events are queued so
// results always find their record.
func (h *Handler) logDelivery(p webhook.Payload, events, size int) string {
	if h.Deliveries == nil {
		return ""
	}
	d, err := h.Deliveries.Append(webhooklog.Delivery{
		Object:   p.Object,
		Entries:  len(p.Entry),
		Events:   events,
		Accepted: events,
		Bytes:    size,
	})
	if err != nil {
		logger.Warn("webhook_log_append_failed", "error", err)
		return ""
	}
	return d.ID
}
