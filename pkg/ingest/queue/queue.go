// Package queue is the bounded, page-sharded buffer between the webhook
// handler and the ingest workers.
package queue

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"pagedesk/pkg/webhook"
)

var (
	ErrQueueFull   = errors.New("ingest queue full")
	ErrQueueClosed = errors.New("ingest queue closed")
)

// Item is one normalized event waiting to be applied.
type Item struct {
	Event      webhook.Event
	DeliveryID string
	EnqueuedAt time.Time
}

// PageID returns the page the item belongs to.
func (it *Item) PageID() string { return it.Event.Meta().PageID }

var itemPool = sync.Pool{New: func() any { return &Item{} }}

// NewItem takes an Item from the pool.
func NewItem(ev webhook.Event, deliveryID string) *Item {
	it := itemPool.Get().(*Item)
	it.Event = ev
	it.DeliveryID = deliveryID
	it.EnqueuedAt = time.Now()
	return it
}

// Release returns the item to the pool. It must not be used afterwards.
func (it *Item) Release() {
	*it = Item{}
	itemPool.Put(it)
}

// Queue fans items out to lanes by page id. All items of one page land in
// the same lane, so a single consumer per lane applies them in arrival order.
type Queue struct {
	mu       sync.RWMutex
	lanes    []chan *Item
	capacity int
	closed   bool
	dropped  atomic.Uint64
}

// New creates a queue of lanes channels sharing capacity slots. Both must be > 0.
func New(capacity, lanes int) *Queue {
	if capacity <= 0 || lanes <= 0 {
		panic("queue.New: capacity and lanes must be > 0; ensure config.ValidateConfig() applied defaults")
	}
	if lanes > capacity {
		lanes = capacity
	}
	per := capacity / lanes
	q := &Queue{lanes: make([]chan *Item, lanes), capacity: per * lanes}
	for i := range q.lanes {
		q.lanes[i] = make(chan *Item, per)
	}
	return q
}

// Lane returns the lane index of pageID.
func (q *Queue) Lane(pageID string) int {
	return int(xxhash.Sum64String(pageID) % uint64(len(q.lanes)))
}

// Enqueue adds it without blocking. A full lane drops the item.
func (q *Queue) Enqueue(it *Item) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.lanes[q.Lane(it.PageID())] <- it:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Out returns the receive side of a lane. It is closed by Close.
func (q *Queue) Out(lane int) <-chan *Item { return q.lanes[lane] }

// Lanes returns the number of lanes.
func (q *Queue) Lanes() int { return len(q.lanes) }

// Len returns the number of queued items across lanes.
func (q *Queue) Len() int {
	n := 0
	for _, ch := range q.lanes {
		n += len(ch)
	}
	return n
}

// Cap returns the total capacity.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns how many items were rejected because a lane was full.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Close stops accepting items and closes every lane. Queued items stay
// readable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for _, ch := range q.lanes {
		close(ch)
	}
}
