package ingest

import (
	"context"

	"pagedesk/pkg/logger"
)

// Observer consumes processor results: it logs them and forwards
// per-delivery outcomes to a DeliveryRecorder.
type Observer struct {
	results  <-chan Result
	recorder DeliveryRecorder
	done     chan struct{}
}

// NewObserver builds an Observer. recorder may be nil.
func NewObserver(results <-chan Result, recorder DeliveryRecorder) *Observer {
	return &Observer{results: results, recorder: recorder, done: make(chan struct{})}
}

// Run consumes results until the channel closes or ctx ends.
func (o *Observer) Run(ctx context.Context) {
	defer close(o.done)
	for {
		select {
		case res, ok := <-o.results:
			if !ok {
				return
			}
			o.observe(res)
		case <-ctx.Done():
			return
		}
	}
}

// Done is closed when Run returns.
func (o *Observer) Done() <-chan struct{} { return o.done }

func (o *Observer) observe(res Result) {
	switch res.Status {
	case StatusFailed:
		logger.Error("ingest_event_failed", "event", res.Event, "delivery_id", res.DeliveryID, "error", res.Err)
	case StatusIgnored:
		logger.Debug("ingest_event_ignored", "event", res.Event, "delivery_id", res.DeliveryID)
	default:
		logger.Debug("ingest_event_applied", "page_id", res.PageID, "kind", res.Kind, "sender_id", res.SenderID,
			"message_id", res.MessageID, "updated", res.Updated, "fallback_profile", res.FallbackProfile, "duration", res.Duration)
	}
	if res.Evicted {
		logger.Debug("message_store_evicted", "page_id", res.PageID)
	}

	if o.recorder == nil || res.DeliveryID == "" {
		return
	}
	errMsg := ""
	if res.Err != nil {
		errMsg = res.Err.Error()
	}
	if err := o.recorder.RecordResult(res.DeliveryID, res.Status != StatusFailed, errMsg); err != nil {
		logger.Warn("webhook_log_update_failed", "delivery_id", res.DeliveryID, "error", err)
	}
}
