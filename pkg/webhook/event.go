package webhook

import (
	"encoding/json"
	"fmt"

	"pagedesk/pkg/models"
)

// Kind names a normalized event variant.
type Kind string

const (
	KindMessage      Kind = "message"
	KindPostback     Kind = "postback"
	KindDelivery     Kind = "delivery"
	KindRead         Kind = "read"
	KindOptin        Kind = "optin"
	KindUnrecognized Kind = "unrecognized"
)

// Event is the closed set of normalized webhook events. The concrete types
// are MessageEvent, PostbackEvent, DeliveryEvent, ReadEvent, OptinEvent and
// Unrecognized.
type Event interface {
	Kind() Kind
	Meta() Base
	event()
}

// Base holds the routing fields shared by every event.
type Base struct {
	PageID      string
	SenderID    string
	RecipientID string
	Timestamp   int64
}

func (b Base) Meta() Base { return b }
func (Base) event()       {}

type MessageEvent struct {
	Base
	MID         string
	Text        *string
	Attachments json.RawMessage
	QuickReply  *models.QuickReply
	IsEcho      bool
}

func (MessageEvent) Kind() Kind { return KindMessage }

// HasText reports whether the message carried any text.
func (e MessageEvent) HasText() bool { return e.Text != nil && *e.Text != "" }

type PostbackEvent struct {
	Base
	Payload  string
	Title    string
	Referral json.RawMessage
}

func (PostbackEvent) Kind() Kind { return KindPostback }

type DeliveryEvent struct {
	Base
	MIDs      []string
	Watermark int64
}

func (DeliveryEvent) Kind() Kind { return KindDelivery }

type ReadEvent struct {
	Base
	Watermark int64
}

func (ReadEvent) Kind() Kind { return KindRead }

type OptinEvent struct {
	Base
	Token string
	Ref   string
}

func (OptinEvent) Kind() Kind { return KindOptin }

// Unrecognized is an event with none of the known discriminator fields.
type Unrecognized struct {
	Base
}

func (Unrecognized) Kind() Kind { return KindUnrecognized }

// Describe renders a short description for logs.
func Describe(ev Event) string {
	m := ev.Meta()
	return fmt.Sprintf("%s page=%s sender=%s ts=%d", ev.Kind(), m.PageID, m.SenderID, m.Timestamp)
}
