package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pagedesk/pkg/timeutil"
)

// Per-key rate limiter pool.
type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

type limiterPool struct {
	mu            sync.Mutex
	m             map[string]*limiterEntry
	cfg           SecConfig
	startCleanup  sync.Once
	stopOnce      sync.Once
	ttl           time.Duration
	cleanupPeriod time.Duration
	stopCh        chan struct{}
}

func newLimiterPool(cfg SecConfig) *limiterPool {
	return &limiterPool{cfg: cfg, stopCh: make(chan struct{})}
}

// get limiter for key, create if missing; start cleanup once
func (p *limiterPool) get(key string) *rate.Limiter {
	p.startCleanup.Do(func() {
		if p.ttl == 0 {
			p.ttl = 10 * time.Minute
		}
		if p.cleanupPeriod == 0 {
			p.cleanupPeriod = time.Minute
		}
		go p.cleanupLoop()
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*limiterEntry)
	}
	if e, ok := p.m[key]; ok {
		e.lastSeen = timeutil.Now()
		return e.l
	}

	l := rate.NewLimiter(rate.Limit(p.cfg.RPS), p.cfg.Burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: timeutil.Now()}
	return l
}

// Allow returns true if the current request is allowed. A non-positive
// rate disables limiting.
func (p *limiterPool) Allow(key string) bool {
	if p.cfg.RPS <= 0 {
		return true
	}
	return p.get(key).Allow()
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// Shutdown stops the cleanup goroutine.
func (p *limiterPool) Shutdown() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// cleanupLoop removes limiters unused > TTL.
func (p *limiterPool) cleanupLoop() {
	ticker := time.NewTicker(p.cleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evictIdle()
		case <-p.stopCh:
			return
		}
	}
}

func (p *limiterPool) evictIdle() {
	cutoff := timeutil.Now().Add(-p.ttl)
	p.mu.Lock()
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
	p.mu.Unlock()
}
