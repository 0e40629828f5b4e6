package store

import (
	"sort"

	"pagedesk/pkg/models"
)

// ConversationIndex maps a counterpart id to its conversation summary.
// It is not safe for concurrent use; PageState serializes access.
type ConversationIndex struct {
	byID map[string]*models.Conversation
}

func NewConversationIndex() *ConversationIndex {
	return &ConversationIndex{byID: make(map[string]*models.Conversation)}
}

// Upsert records rec as the latest activity of senderID.
func (c *ConversationIndex) Upsert(senderID string, rec models.Message, info models.Profile) models.Conversation {
	conv, ok := c.byID[senderID]
	if !ok {
		conv = &models.Conversation{SenderID: senderID}
		c.byID[senderID] = conv
	}
	conv.SenderInfo = info
	conv.LastMessage = rec
	conv.LastActivity = rec.Timestamp
	if rec.Type == models.MessageReceived {
		conv.UnreadCount++
	}
	return *conv
}

// ResetUnread zeroes the unread count of senderID. It reports whether the
// conversation exists.
func (c *ConversationIndex) ResetUnread(senderID string) bool {
	conv, ok := c.byID[senderID]
	if !ok {
		return false
	}
	conv.UnreadCount = 0
	return true
}

// Get returns a copy of the conversation with senderID.
func (c *ConversationIndex) Get(senderID string) (models.Conversation, bool) {
	conv, ok := c.byID[senderID]
	if !ok {
		return models.Conversation{}, false
	}
	return *conv, true
}

// Len returns the number of conversations.
func (c *ConversationIndex) Len() int { return len(c.byID) }

// Unread sums unread counts across all conversations.
func (c *ConversationIndex) Unread() int {
	n := 0
	for _, conv := range c.byID {
		n += conv.UnreadCount
	}
	return n
}

// List returns every conversation, most recent activity first. Ties are
// ordered by sender id.
func (c *ConversationIndex) List() []models.Conversation {
	out := make([]models.Conversation, 0, len(c.byID))
	for _, conv := range c.byID {
		out = append(out, *conv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivity != out[j].LastActivity {
			return out[i].LastActivity > out[j].LastActivity
		}
		return out[i].SenderID < out[j].SenderID
	})
	return out
}
