package timeutil

import (
	"sync"
	"time"
)

var (
	mu  sync.RWMutex
	now = time.Now
)

// Now returns the current time from the package clock.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return now()
}

// NowMillis returns Now as epoch milliseconds.
func NowMillis() int64 {
	return Now().UnixMilli()
}

// SetClock swaps the clock used by Now and returns a func restoring the previous one.
func SetClock(fn func() time.Time) func() {
	mu.Lock()
	prev := now
	now = fn
	mu.Unlock()
	return func() {
		mu.Lock()
		now = prev
		mu.Unlock()
	}
}

// FromMillis converts epoch milliseconds to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
