package store

import (
	"pagedesk/pkg/models"
)

const (
	// DefaultCapacity is the number of messages kept per page.
	DefaultCapacity = 1000
	// DefaultLimit is the page size used when a query passes no usable limit.
	DefaultLimit = 50
)

// StatusField selects which status a receipt writes.
type StatusField int

const (
	DeliveryStatus StatusField = iota
	ReadStatus
)

// Matcher selects the records a status update applies to.
type Matcher interface {
	Match(m *models.Message) bool
}

type idMatcher map[string]struct{}

func (s idMatcher) Match(m *models.Message) bool {
	_, ok := s[m.ID]
	return ok
}

// ByIDs matches records by message id.
func ByIDs(ids ...string) Matcher {
	set := make(idMatcher, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

type watermarkMatcher struct {
	sender    string
	watermark int64
}

func (w watermarkMatcher) Match(m *models.Message) bool {
	return m.SenderID == w.sender && m.Timestamp <= w.watermark
}

// ByWatermark matches records from senderID with timestamp <= watermark.
func ByWatermark(senderID string, watermark int64) Matcher {
	return watermarkMatcher{sender: senderID, watermark: watermark}
}

// MessageStore is a capped, insertion-ordered ring of message records.
// It is not safe for concurrent use; PageState serializes access.
type MessageStore struct {
	buf      []models.Message
	head     int
	capacity int
	evicted  uint64
}

// NewMessageStore returns a store holding at most capacity records.
func NewMessageStore(capacity int) *MessageStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MessageStore{capacity: capacity}
}

// Append adds rec as the newest record, evicting the oldest when full.
// It reports whether a record was evicted.
func (s *MessageStore) Append(rec models.Message) bool {
	if len(s.buf) < s.capacity {
		s.buf = append(s.buf, rec)
		return false
	}
	s.buf[s.head] = rec
	s.head = (s.head + 1) % s.capacity
	s.evicted++
	return true
}

// Len returns the number of stored records.
func (s *MessageStore) Len() int { return len(s.buf) }

// Cap returns the store capacity.
func (s *MessageStore) Cap() int { return s.capacity }

// Evicted returns how many records were dropped by capping.
func (s *MessageStore) Evicted() uint64 { return s.evicted }

// at returns the i-th oldest record.
func (s *MessageStore) at(i int) *models.Message {
	return &s.buf[(s.head+i)%len(s.buf)]
}

// All returns copies of every record, oldest first.
func (s *MessageStore) All() []models.Message {
	out := make([]models.Message, len(s.buf))
	for i := range s.buf {
		out[i] = *s.at(i)
	}
	return out
}

// Query returns up to limit records, newest first, after skipping offset
// records from the newest end. A non-empty counterpartID keeps only records
// it sent or received. Out-of-range limit and offset values are clamped.
func (s *MessageStore) Query(counterpartID string, limit, offset int) models.MessagePage {
	limit, offset = clampWindow(limit, offset, s.capacity)

	out := make([]models.Message, 0, min(limit, len(s.buf)))
	total := 0
	for i := len(s.buf) - 1; i >= 0; i-- {
		m := s.at(i)
		if counterpartID != "" && !m.Involves(counterpartID) {
			continue
		}
		if total >= offset && len(out) < limit {
			out = append(out, *m)
		}
		total++
	}
	return models.MessagePage{
		Messages: out,
		Total:    total,
		HasMore:  total > limit+offset,
	}
}

// UpdateStatus writes value into field of every record matched and returns
// the number of records touched.
func (s *MessageStore) UpdateStatus(match Matcher, field StatusField, value string) int {
	n := 0
	for i := range s.buf {
		m := &s.buf[i]
		if !match.Match(m) {
			continue
		}
		switch field {
		case DeliveryStatus:
			m.DeliveryStatus = value
		case ReadStatus:
			m.ReadStatus = value
		}
		n++
	}
	return n
}

func clampWindow(limit, offset, capacity int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > capacity {
		limit = capacity
	}
	if offset < 0 {
		offset = 0
	}
	if offset > capacity {
		offset = capacity
	}
	return limit, offset
}
