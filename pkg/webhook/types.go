package webhook

import (
	"encoding/json"

	"pagedesk/pkg/models"
)

// ObjectPage is the only webhook object type this service accepts.
const ObjectPage = "page"

// Payload is the top-level body of a Messenger webhook delivery.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the events of a single page.
type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

// Party identifies a sender or recipient by page-scoped id.
type Party struct {
	ID string `json:"id"`
}

// Messaging is one raw event. At most one of the pointer fields is
// expected to be set; the first one present decides the event kind.
type Messaging struct {
	Sender    Party `json:"sender"`
	Recipient Party `json:"recipient"`
	Timestamp int64 `json:"timestamp"`

	Message  *RawMessage  `json:"message,omitempty"`
	Postback *RawPostback `json:"postback,omitempty"`
	Delivery *RawDelivery `json:"delivery,omitempty"`
	Read     *RawRead     `json:"read,omitempty"`
	Optin    *RawOptin    `json:"optin,omitempty"`
}

// RawMessage is the message field of a messaging event.
type RawMessage struct {
	MID         string             `json:"mid"`
	Text        *string            `json:"text,omitempty"`
	Attachments json.RawMessage    `json:"attachments,omitempty"`
	QuickReply  *models.QuickReply `json:"quick_reply,omitempty"`
	IsEcho      bool               `json:"is_echo,omitempty"`
}

// RawPostback is the postback field of a messaging event.
type RawPostback struct {
	Payload  string          `json:"payload"`
	Title    string          `json:"title"`
	Referral json.RawMessage `json:"referral,omitempty"`
}

// RawDelivery is a delivery receipt.
type RawDelivery struct {
	MIDs      []string `json:"mids"`
	Watermark int64    `json:"watermark"`
}

// RawRead is a read receipt.
type RawRead struct {
	Watermark int64 `json:"watermark"`
}

// RawOptin carries a one-time notification token.
type RawOptin struct {
	Type  string `json:"type,omitempty"`
	Ref   string `json:"ref,omitempty"`
	Token string `json:"one_time_notif_token"`
}
