// Package webhooklog records accepted webhook deliveries in pebble so
// operators can see what the platform sent and how it was applied.
package webhooklog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/uuid"
	"github.com/valyala/bytebufferpool"

	"pagedesk/pkg/logger"
	"pagedesk/pkg/timeutil"
)

const (
	StatusReceived  = "received"
	StatusProcessed = "processed"
	StatusPartial   = "partial"
)

const (
	deliveryPrefix = "d/"
	indexPrefix    = "i/"
	memDir         = "webhooklog"
)

var (
	// ErrNotFound is returned for unknown delivery ids.
	ErrNotFound = errors.New("delivery not found")
	// ErrClosed is returned by every call made after Close.
	ErrClosed = errors.New("webhook log closed")
)

// Delivery is one accepted POST /webhook.
type Delivery struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
	Object     string    `json:"object"`
	Entries    int       `json:"entries"`
	Events     int       `json:"events"`
	Accepted   int       `json:"accepted"`
	Bytes      int       `json:"bytes"`
	Status     string    `json:"status"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	LastError  string    `json:"lastError,omitempty"`
}

// Options configures Open. An empty Path keeps the log in memory.
type Options struct {
	Path      string
	CacheSize int64
}

// Log is a pebble-backed delivery log.
type Log struct {
	path string
	// write lock for read-modify-write of records and for Close
	mu sync.RWMutex
	db *pebble.DB
}

// Open opens or creates the log.
func Open(opts Options) (*Log, error) {
	popts := &pebble.Options{}
	if opts.CacheSize > 0 {
		cache := pebble.NewCache(opts.CacheSize)
		defer cache.Unref()
		popts.Cache = cache
	}
	dir := opts.Path
	if dir == "" {
		popts.FS = vfs.NewMem()
		dir = memDir
	}
	db, err := pebble.Open(dir, popts)
	if err != nil {
		logger.Error("webhook_log_open_failed", "path", opts.Path, "error", err)
		return nil, fmt.Errorf("open webhook log: %w", err)
	}
	return &Log{db: db, path: opts.Path}, nil
}

// InMemory reports whether the log lives only in memory.
func (l *Log) InMemory() bool { return l.path == "" }

// Close closes the underlying store.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func deliveryKey(ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%019d/%s", deliveryPrefix, ts.UnixNano(), id))
}

func indexKey(id string) []byte { return []byte(indexPrefix + id) }

func idFromKey(key []byte) string {
	s := strings.TrimPrefix(string(key), deliveryPrefix)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// prefixUpper returns the smallest key greater than every key with prefix.
func prefixUpper(prefix string) []byte {
	b := []byte(prefix)
	b[len(b)-1]++
	return b
}

func encode(d Delivery, fn func([]byte) error) error {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	if err := json.NewEncoder(bb).Encode(d); err != nil {
		return err
	}
	return fn(bb.B)
}

// Append stores d as a new delivery with status received. Missing id and
// receive time are filled in.
func (l *Log) Append(d Delivery) (Delivery, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.ReceivedAt.IsZero() {
		d.ReceivedAt = timeutil.Now()
	}
	d.ReceivedAt = d.ReceivedAt.UTC()
	d.Status = StatusReceived
	if d.Accepted == 0 {
		// nothing will be reported back
		d.Status = StatusProcessed
	}
	key := deliveryKey(d.ReceivedAt, d.ID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return d, ErrClosed
	}
	b := l.db.NewBatch()
	defer b.Close()
	if err := encode(d, func(v []byte) error { return b.Set(key, v, nil) }); err != nil {
		return d, fmt.Errorf("encode delivery: %w", err)
	}
	if err := b.Set(indexKey(d.ID), key, nil); err != nil {
		return d, err
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return d, fmt.Errorf("append delivery: %w", err)
	}
	return d, nil
}

// Get returns the delivery with id.
func (l *Log) Get(id string) (Delivery, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.db == nil {
		return Delivery{}, ErrClosed
	}
	_, d, err := l.load(id)
	return d, err
}

func (l *Log) load(id string) ([]byte, Delivery, error) {
	var d Delivery
	key, closer, err := l.db.Get(indexKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, d, ErrNotFound
		}
		return nil, d, err
	}
	k := append([]byte(nil), key...)
	closer.Close()

	v, closer, err := l.db.Get(k)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, d, ErrNotFound
		}
		return nil, d, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &d); err != nil {
		return nil, d, fmt.Errorf("decode delivery %s: %w", id, err)
	}
	return k, d, nil
}

// RecordResult folds one event outcome into delivery id. Once every accepted
// event is reported the status becomes processed, or partial when any failed.
func (l *Log) RecordResult(id string, ok bool, errMsg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return ErrClosed
	}
	key, d, err := l.load(id)
	if err != nil {
		return err
	}
	if ok {
		d.Processed++
	} else {
		d.Failed++
		d.LastError = errMsg
	}
	if d.Processed+d.Failed >= d.Accepted {
		d.Status = StatusProcessed
		if d.Failed > 0 {
			d.Status = StatusPartial
		}
	}
	return encode(d, func(v []byte) error { return l.db.Set(key, v, pebble.NoSync) })
}

// Recent returns up to limit deliveries, newest first.
func (l *Log) Recent(limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.db == nil {
		return nil, ErrClosed
	}
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(deliveryPrefix),
		UpperBound: prefixUpper(deliveryPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make([]Delivery, 0, limit)
	for ok := iter.Last(); ok && len(out) < limit; ok = iter.Prev() {
		var d Delivery
		if err := json.Unmarshal(iter.Value(), &d); err != nil {
			logger.Warn("webhook_log_decode_failed", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, d)
	}
	return out, iter.Error()
}

// PurgeBefore deletes deliveries received before cutoff and returns how
// many matched. With dryRun nothing is deleted.
func (l *Log) PurgeBefore(cutoff time.Time, dryRun bool) (int, error) {
	upper := []byte(fmt.Sprintf("%s%019d", deliveryPrefix, cutoff.UnixNano()))
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return 0, ErrClosed
	}
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(deliveryPrefix),
		UpperBound: upper,
	})
	if err != nil {
		return 0, err
	}

	b := l.db.NewBatch()
	defer b.Close()
	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
		if dryRun {
			continue
		}
		key := append([]byte(nil), iter.Key()...)
		if err := b.Delete(key, nil); err != nil {
			iter.Close()
			return 0, err
		}
		if id := idFromKey(key); id != "" {
			if err := b.Delete(indexKey(id), nil); err != nil {
				iter.Close()
				return 0, err
			}
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	if dryRun || n == 0 {
		return n, nil
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("purge deliveries: %w", err)
	}
	return n, nil
}

// Count returns the number of stored deliveries.
func (l *Log) Count() (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.db == nil {
		return 0, ErrClosed
	}
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(deliveryPrefix),
		UpperBound: prefixUpper(deliveryPrefix),
	})
	if err != nil {
		return 0, err
	}
	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n, iter.Close()
}
