package ingest

import (
	"pagedesk/pkg/ingest/queue"
	"pagedesk/pkg/logger"
	"pagedesk/pkg/webhook"
)

// Submit queues the events of one webhook delivery. Events that do not
// fit are dropped, counted and logged; the count of accepted events is
// returned.
func Submit(q *queue.Queue, deliveryID string, events []webhook.Event) int {
	accepted := 0
	for _, ev := range events {
		it := queue.NewItem(ev, deliveryID)
		if err := q.Enqueue(it); err != nil {
			it.Release()
			droppedTotal.Inc()
			logger.Warn("ingest_event_dropped", "reason", err, "page_id", ev.Meta().PageID, "kind", ev.Kind(), "delivery_id", deliveryID)
			continue
		}
		accepted++
	}
	return accepted
}
