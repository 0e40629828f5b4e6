package webhook

import (
	"encoding/json"
	"fmt"
)

// Decode parses a webhook request body.
func Decode(body []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, fmt.Errorf("decode webhook payload: %w", err)
	}
	return p, nil
}

// Normalize converts one raw messaging event of pageID into its tagged
// variant. It never fails: unknown shapes become Unrecognized.
func Normalize(pageID string, raw Messaging) Event {
	base := Base{
		PageID:      pageID,
		SenderID:    raw.Sender.ID,
		RecipientID: raw.Recipient.ID,
		Timestamp:   raw.Timestamp,
	}
	switch {
	case raw.Message != nil:
		m := raw.Message
		return MessageEvent{
			Base:        base,
			MID:         m.MID,
			Text:        m.Text,
			Attachments: m.Attachments,
			QuickReply:  m.QuickReply,
			IsEcho:      m.IsEcho,
		}
	case raw.Postback != nil:
		return PostbackEvent{
			Base:     base,
			Payload:  raw.Postback.Payload,
			Title:    raw.Postback.Title,
			Referral: raw.Postback.Referral,
		}
	case raw.Delivery != nil:
		mids := make([]string, len(raw.Delivery.MIDs))
		copy(mids, raw.Delivery.MIDs)
		return DeliveryEvent{Base: base, MIDs: mids, Watermark: raw.Delivery.Watermark}
	case raw.Read != nil:
		return ReadEvent{Base: base, Watermark: raw.Read.Watermark}
	case raw.Optin != nil:
		return OptinEvent{Base: base, Token: raw.Optin.Token, Ref: raw.Optin.Ref}
	default:
		return Unrecognized{Base: base}
	}
}

// Events flattens every entry of p into normalized events, in delivery order.
func Events(p Payload) []Event {
	n := 0
	for _, e := range p.Entry {
		n += len(e.Messaging)
	}
	out := make([]Event, 0, n)
	for _, e := range p.Entry {
		for _, m := range e.Messaging {
			out = append(out, Normalize(e.ID, m))
		}
	}
	return out
}
