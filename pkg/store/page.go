package store

import (
	"sync"

	"pagedesk/pkg/models"
)

// PageState owns the message store and conversation index of one page.
// A single RWMutex covers both so combined updates are atomic to readers.
type PageState struct {
	id string

	mu            sync.RWMutex
	messages      *MessageStore
	conversations *ConversationIndex
	optins        map[string]string
	lastEvent     int64
}

// PageStats is a point-in-time summary of a page.
type PageStats struct {
	PageID        string `json:"pageId"`
	Messages      int    `json:"messages"`
	Capacity      int    `json:"capacity"`
	Evicted       uint64 `json:"evicted"`
	Conversations int    `json:"conversations"`
	Unread        int    `json:"unread"`
	OptinTokens   int    `json:"optinTokens"`
	LastEvent     int64  `json:"lastEvent"`
}

func newPageState(id string, capacity int) *PageState {
	return &PageState{
		id:            id,
		messages:      NewMessageStore(capacity),
		conversations: NewConversationIndex(),
		optins:        make(map[string]string),
	}
}

// ID returns the page id.
func (p *PageState) ID() string { return p.id }

// Ingest appends rec and folds it into the sender's conversation.
func (p *PageState) Ingest(rec models.Message) (conv models.Conversation, evicted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	evicted = p.messages.Append(rec)
	conv = p.conversations.Upsert(rec.SenderID, rec, rec.SenderInfo)
	p.touch(rec.Timestamp)
	return conv, evicted
}

// ApplyDelivery marks the given message ids delivered. Ids no longer in the
// store are ignored.
func (p *PageState) ApplyDelivery(mids []string, ts int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touch(ts)
	if len(mids) == 0 {
		return 0
	}
	return p.messages.UpdateStatus(ByIDs(mids...), DeliveryStatus, models.StatusDelivered)
}

// ApplyRead marks messages from senderID up to watermark read and then
// resets the whole conversation's unread count.
func (p *PageState) ApplyRead(senderID string, watermark int64) (updated int, reset bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touch(watermark)
	updated = p.messages.UpdateStatus(ByWatermark(senderID, watermark), ReadStatus, models.StatusRead)
	reset = p.conversations.ResetUnread(senderID)
	return updated, reset
}

// MarkRead resets the unread count of senderID's conversation.
func (p *PageState) MarkRead(senderID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conversations.ResetUnread(senderID)
}

// RecordOptin stores the latest one-time notification token of senderID.
func (p *PageState) RecordOptin(senderID, token string, ts int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touch(ts)
	if token == "" {
		return
	}
	p.optins[senderID] = token
}

// OptinToken returns the stored one-time notification token of senderID.
func (p *PageState) OptinToken(senderID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tok, ok := p.optins[senderID]
	return tok, ok
}

// ConsumeOptin removes and returns the token of senderID. Tokens are single use.
func (p *PageState) ConsumeOptin(senderID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tok, ok := p.optins[senderID]
	if ok {
		delete(p.optins, senderID)
	}
	return tok, ok
}

// Messages runs MessageStore.Query under the read lock.
func (p *PageState) Messages(counterpartID string, limit, offset int) models.MessagePage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.messages.Query(counterpartID, limit, offset)
}

// Conversations lists the page's conversations, most recent first.
func (p *PageState) Conversations() []models.Conversation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conversations.List()
}

// Conversation returns the conversation with senderID.
func (p *PageState) Conversation(senderID string) (models.Conversation, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conversations.Get(senderID)
}

func (p *PageState) Stats() PageStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PageStats{
		PageID:        p.id,
		Messages:      p.messages.Len(),
		Capacity:      p.messages.Cap(),
		Evicted:       p.messages.Evicted(),
		Conversations: p.conversations.Len(),
		Unread:        p.conversations.Unread(),
		OptinTokens:   len(p.optins),
		LastEvent:     p.lastEvent,
	}
}

// touch must be called with mu held.
func (p *PageState) touch(ts int64) {
	if ts > p.lastEvent {
		p.lastEvent = ts
	}
}
