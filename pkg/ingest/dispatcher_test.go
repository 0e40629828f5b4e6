package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagedesk/pkg/ingest/queue"
	"pagedesk/pkg/models"
	"pagedesk/pkg/store"
	"pagedesk/pkg/webhook"
)

type stubResolver struct {
	mu    sync.Mutex
	known map[string]models.Profile
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, senderID, _ string) models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if p, ok := s.known[senderID]; ok {
		return p
	}
	return models.FallbackProfile(senderID)
}

func text(s string) *string { return &s }

func message(page, sender, mid string, ts int64) webhook.MessageEvent {
	return webhook.MessageEvent{
		Base: webhook.Base{PageID: page, SenderID: sender, RecipientID: page, Timestamp: ts},
		MID:  mid,
		Text: text("hi"),
	}
}

func TestDispatchCountsUnreadPerSender(t *testing.T) {
	reg := store.NewRegistry(0)
	d := NewDispatcher(reg, &stubResolver{})
	ctx := context.Background()

	counts := map[string]int{"u1": 3, "u2": 1, "u3": 2}
	ts := int64(1000)
	for sender, n := range counts {
		for i := 0; i < n; i++ {
			ts++
			res := d.Dispatch(ctx, message("p1", sender, "", ts))
			require.Equal(t, StatusApplied, res.Status)
		}
	}

	page := reg.Get("p1")
	assert.Len(t, page.Conversations(), len(counts))
	for sender, n := range counts {
		conv, ok := page.Conversation(sender)
		require.True(t, ok)
		assert.Equal(t, n, conv.UnreadCount, sender)
	}
}

func TestDispatchPostbackNotUnread(t *testing.T) {
	reg := store.NewRegistry(0)
	d := NewDispatcher(reg, &stubResolver{})

	res := d.Dispatch(context.Background(), webhook.PostbackEvent{
		Base:    webhook.Base{PageID: "p1", SenderID: "u1", RecipientID: "p1", Timestamp: 5},
		Payload: "GET_STARTED",
		Title:   "Get Started",
	})
	require.Equal(t, StatusApplied, res.Status)
	assert.True(t, strings.HasPrefix(res.MessageID, "postback_5_"))

	conv, ok := reg.Get("p1").Conversation("u1")
	require.True(t, ok)
	assert.Equal(t, 0, conv.UnreadCount)
	assert.Equal(t, models.MessagePostback, conv.LastMessage.Type)
	assert.Equal(t, "GET_STARTED", conv.LastMessage.Payload)
}

func TestDispatchGeneratesMessageIDs(t *testing.T) {
	reg := store.NewRegistry(0)
	d := NewDispatcher(reg, &stubResolver{})

	withMID := d.Dispatch(context.Background(), message("p1", "u1", "mid.1", 10))
	assert.Equal(t, "mid.1", withMID.MessageID)

	without := d.Dispatch(context.Background(), message("p1", "u1", "", 11))
	assert.True(t, strings.HasPrefix(without.MessageID, "msg_11_"), without.MessageID)

	page := reg.Get("p1").Messages("", 10, 0)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, models.CreatedAtFromMillis(11), page.Messages[0].CreatedAt)
}

func TestDispatchUnrecognizedIsNoop(t *testing.T) {
	reg := store.NewRegistry(0)
	d := NewDispatcher(reg, &stubResolver{})

	res := d.Dispatch(context.Background(), webhook.Unrecognized{Base: webhook.Base{PageID: "p1", SenderID: "u1"}})
	assert.Equal(t, StatusIgnored, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, "unrecognized page=p1 sender=u1 ts=0", res.Event)
	_, ok := reg.Lookup("p1")
	assert.False(t, ok, "no page state for an unrecognized event")
}

func TestDispatchResolverFallbackStillStores(t *testing.T) {
	reg := store.NewRegistry(0)
	d := NewDispatcher(reg, &stubResolver{})

	res := d.Dispatch(context.Background(), message("p1", "stranger", "mid.x", 10))
	assert.True(t, res.FallbackProfile)
	assert.Empty(t, res.Event)

	page := reg.Get("p1").Messages("", 10, 0)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, models.UnknownUserName, page.Messages[0].SenderInfo.Name)
	conv, _ := reg.Get("p1").Conversation("stranger")
	assert.Equal(t, models.UnknownUserName, conv.SenderInfo.Name)
}

func TestDispatchReceipts(t *testing.T) {
	reg := store.NewRegistry(0)
	d := NewDispatcher(reg, &stubResolver{})
	ctx := context.Background()

	d.Dispatch(ctx, message("p1", "u1", "mid.1", 100))
	d.Dispatch(ctx, message("p1", "u1", "mid.2", 200))
	d.Dispatch(ctx, message("p1", "u1", "mid.3", 300))

	res := d.Dispatch(ctx, webhook.DeliveryEvent{Base: webhook.Base{PageID: "p1", SenderID: "u1"}, MIDs: []string{"mid.1", "mid.gone"}})
	assert.Equal(t, 1, res.Updated)

	res = d.Dispatch(ctx, webhook.ReadEvent{Base: webhook.Base{PageID: "p1", SenderID: "u1"}, Watermark: 200})
	assert.Equal(t, 2, res.Updated)

	conv, _ := reg.Get("p1").Conversation("u1")
	assert.Equal(t, 0, conv.UnreadCount, "read receipt resets the whole conversation")

	msgs := reg.Get("p1").Messages("", 10, 0).Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "", msgs[0].ReadStatus)
	assert.Equal(t, models.StatusRead, msgs[1].ReadStatus)
	assert.Equal(t, models.StatusDelivered, msgs[2].DeliveryStatus)
}

func TestDispatchOptinRecordsToken(t *testing.T) {
	reg := store.NewRegistry(0)
	d := NewDispatcher(reg, &stubResolver{})

	d.Dispatch(context.Background(), webhook.OptinEvent{Base: webhook.Base{PageID: "p1", SenderID: "u1"}, Token: "otn-1"})
	tok, ok := reg.Get("p1").OptinToken("u1")
	assert.True(t, ok)
	assert.Equal(t, "otn-1", tok)
	_, ok = reg.Get("p1").Conversation("u1")
	assert.False(t, ok)
}

type recorder struct {
	mu   sync.Mutex
	oks  map[string]int
	errs map[string]int
}

func (r *recorder) RecordResult(id string, ok bool, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.oks[id]++
	} else {
		r.errs[id]++
	}
	return nil
}

func (r *recorder) ok(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.oks[id]
}

func TestProcessorKeepsPerPageOrder(t *testing.T) {
	reg := store.NewRegistry(0)
	q := queue.New(1024, 4)
	p := NewProcessor(q, NewDispatcher(reg, &stubResolver{}), 1024)
	rec := &recorder{oks: map[string]int{}, errs: map[string]int{}}
	obs := NewObserver(p.Results(), rec)
	go obs.Run(context.Background())
	p.Start()

	const perPage = 50
	pages := []string{"p1", "p2", "p3"}
	for i := 0; i < perPage; i++ {
		for _, page := range pages {
			ev := message(page, "u1", fmt.Sprintf("%s.%d", page, i), int64(i+1))
			require.Equal(t, 1, Submit(q, "d-"+page, []webhook.Event{ev}))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Stop(ctx)
	<-obs.Done()

	for _, page := range pages {
		msgs := reg.Get(page).Messages("", perPage, 0).Messages
		require.Len(t, msgs, perPage)
		for i, m := range msgs {
			assert.Equal(t, fmt.Sprintf("%s.%d", page, perPage-1-i), m.ID)
		}
		assert.Equal(t, perPage, rec.ok("d-"+page))
	}
}

func TestSubmitDropsWhenFull(t *testing.T) {
	q := queue.New(1, 1)
	evs := []webhook.Event{message("p1", "u1", "a", 1), message("p1", "u1", "b", 2)}
	assert.Equal(t, 1, Submit(q, "d", evs))
	assert.EqualValues(t, 1, q.Dropped())
}

type slowRecorder struct {
	recorder
	delay time.Duration
}

func (r *slowRecorder) RecordResult(id string, ok bool, msg string) error {
	time.Sleep(r.delay)
	return r.recorder.RecordResult(id, ok, msg)
}

func TestProcessorDeliversEveryResultWithSmallBuffer(t *testing.T) {
	reg := store.NewRegistry(0)
	q := queue.New(512, 2)
	p := NewProcessor(q, NewDispatcher(reg, &stubResolver{}), 1)
	rec := &slowRecorder{recorder: recorder{oks: map[string]int{}, errs: map[string]int{}}, delay: 100 * time.Microsecond}
	obs := NewObserver(p.Results(), rec)
	go obs.Run(context.Background())
	p.Start()

	const n = 200
	for i := 0; i < n; i++ {
		require.Equal(t, 1, Submit(q, "d", []webhook.Event{message("p1", "u1", fmt.Sprintf("m.%d", i), int64(i+1))}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p.Stop(ctx)
	<-obs.Done()
	assert.Equal(t, n, rec.ok("d"))
}

func TestProcessorStopAfterDeadlineWaitsForWorkers(t *testing.T) {
	reg := store.NewRegistry(0)
	q := queue.New(1024, 2)
	p := NewProcessor(q, NewDispatcher(reg, blockingResolver{}), 16)
	go func() {
		for range p.Results() {
		}
	}()
	p.Start()

	for i := 0; i < 500; i++ {
		Submit(q, "d", []webhook.Event{message(fmt.Sprintf("p%d", i%4), "u1", fmt.Sprintf("m.%d", i), int64(i+1))})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p.Stop(ctx)
	assert.EqualValues(t, 0, p.InFlight())

	stored := 0
	for _, id := range reg.Pages() {
		stored += reg.Get(id).Messages("", 1000, 0).Total
	}
	assert.Less(t, stored, 500, "queued items are discarded once stop times out")
}

// blockingResolver waits until its context is cancelled.
type blockingResolver struct{}

func (blockingResolver) Resolve(ctx context.Context, senderID, _ string) models.Profile {
	<-ctx.Done()
	return models.FallbackProfile(senderID)
}
