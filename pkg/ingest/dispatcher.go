package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pagedesk/pkg/models"
	"pagedesk/pkg/store"
	"pagedesk/pkg/telemetry"
	"pagedesk/pkg/timeutil"
	"pagedesk/pkg/webhook"
)

// Dispatcher applies normalized events to page state.
type Dispatcher struct {
	pages    *store.Registry
	resolver SenderResolver
}

// NewDispatcher builds a Dispatcher over pages.
func NewDispatcher(pages *store.Registry, resolver SenderResolver) *Dispatcher {
	return &Dispatcher{pages: pages, resolver: resolver}
}

// Dispatch applies ev. The profile lookup for messages and postbacks runs
// before the page lock is taken.
func (d *Dispatcher) Dispatch(ctx context.Context, ev webhook.Event) Result {
	start := time.Now()
	meta := ev.Meta()
	res := Result{PageID: meta.PageID, SenderID: meta.SenderID, Kind: ev.Kind(), Status: StatusApplied}

	tr := telemetry.Track("ingest." + string(ev.Kind()))
	defer tr.Finish()

	switch e := ev.(type) {
	case webhook.MessageEvent:
		rec := d.messageRecord(e)
		rec.SenderInfo = d.resolver.Resolve(ctx, e.SenderID, e.PageID)
		res.FallbackProfile = rec.SenderInfo.IsFallback()
		tr.Mark("resolve")
		_, res.Evicted = d.pages.Get(e.PageID).Ingest(rec)
		res.MessageID = rec.ID
	case webhook.PostbackEvent:
		rec := d.postbackRecord(e)
		rec.SenderInfo = d.resolver.Resolve(ctx, e.SenderID, e.PageID)
		res.FallbackProfile = rec.SenderInfo.IsFallback()
		tr.Mark("resolve")
		_, res.Evicted = d.pages.Get(e.PageID).Ingest(rec)
		res.MessageID = rec.ID
	case webhook.DeliveryEvent:
		res.Updated = d.pages.Get(e.PageID).ApplyDelivery(e.MIDs, e.Watermark)
	case webhook.ReadEvent:
		res.Updated, _ = d.pages.Get(e.PageID).ApplyRead(e.SenderID, e.Watermark)
	case webhook.OptinEvent:
		d.pages.Get(e.PageID).RecordOptin(e.SenderID, e.Token, e.Timestamp)
	case webhook.Unrecognized:
		res.Status = StatusIgnored
	default:
		res.Status = StatusFailed
		res.Err = fmt.Errorf("dispatch: unsupported event %T", ev)
	}
	if res.Status != StatusApplied {
		res.Event = webhook.Describe(ev)
	}
	tr.Mark("apply")
	res.Duration = time.Since(start)
	return res
}

func (d *Dispatcher) messageRecord(e webhook.MessageEvent) models.Message {
	ts := eventTime(e.Timestamp)
	id := e.MID
	if id == "" {
		id = NewRecordID("msg", ts)
	}
	return models.Message{
		ID:          id,
		SenderID:    e.SenderID,
		RecipientID: e.RecipientID,
		PageID:      e.PageID,
		Timestamp:   ts,
		Type:        models.MessageReceived,
		Text:        e.Text,
		Attachments: e.Attachments,
		QuickReply:  e.QuickReply,
		IsEcho:      e.IsEcho,
		CreatedAt:   models.CreatedAtFromMillis(ts),
	}
}

func (d *Dispatcher) postbackRecord(e webhook.PostbackEvent) models.Message {
	ts := eventTime(e.Timestamp)
	return models.Message{
		ID:          NewRecordID("postback", ts),
		SenderID:    e.SenderID,
		RecipientID: e.RecipientID,
		PageID:      e.PageID,
		Timestamp:   ts,
		Type:        models.MessagePostback,
		Payload:     e.Payload,
		Title:       e.Title,
		Referral:    e.Referral,
		CreatedAt:   models.CreatedAtFromMillis(ts),
	}
}

// NewRecordID builds "<prefix>_<ms>_<uuid>".
func NewRecordID(prefix string, ms int64) string {
	return fmt.Sprintf("%s_%d_%s", prefix, ms, uuid.NewString())
}

func eventTime(ts int64) int64 {
	if ts > 0 {
		return ts
	}
	return timeutil.NowMillis()
}
