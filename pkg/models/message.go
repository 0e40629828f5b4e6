package models

import (
	"encoding/json"
	"time"
)

// MessageType is the kind of a stored message record.
type MessageType string

const (
	MessageReceived MessageType = "received"
	MessagePostback MessageType = "postback"
	// MessageSent is reserved for page-authored messages.
	MessageSent MessageType = "sent"
)

// Status values written by delivery and read receipts.
const (
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// QuickReply carries the payload of a tapped quick reply button.
type QuickReply struct {
	Payload string `json:"payload"`
}

// Message is a single record in a page's message store.
//
// Everything except DeliveryStatus and ReadStatus is fixed once the record
// is appended.
type Message struct {
	ID          string      `json:"id"`
	SenderID    string      `json:"senderId"`
	RecipientID string      `json:"recipientId"`
	PageID      string      `json:"pageId"`
	Timestamp   int64       `json:"timestamp"`
	Type        MessageType `json:"type"`

	// received messages
	Text        *string         `json:"text,omitempty"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
	QuickReply  *QuickReply     `json:"quickReply,omitempty"`
	IsEcho      bool            `json:"isEcho,omitempty"`

	// postbacks
	Payload  string          `json:"payload,omitempty"`
	Title    string          `json:"title,omitempty"`
	Referral json.RawMessage `json:"referral,omitempty"`

	SenderInfo Profile `json:"senderInfo"`
	CreatedAt  string  `json:"createdAt"`

	DeliveryStatus string `json:"deliveryStatus,omitempty"`
	ReadStatus     string `json:"readStatus,omitempty"`
}

// HasText reports whether the message carries text content.
func (m Message) HasText() bool {
	return m.Text != nil && *m.Text != ""
}

// Involves reports whether id is the sender or the recipient of the message.
func (m Message) Involves(id string) bool {
	return m.SenderID == id || m.RecipientID == id
}

// CreatedAtFromMillis renders an epoch millisecond timestamp the way
// CreatedAt is stored.
func CreatedAtFromMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
