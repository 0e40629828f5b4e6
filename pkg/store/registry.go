package store

import (
	"sort"
	"sync"
)

// Registry holds one PageState per page id, created on first use.
type Registry struct {
	capacity int

	mu    sync.RWMutex
	pages map[string]*PageState
}

// NewRegistry returns an empty registry whose pages keep capacity messages each.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{capacity: capacity, pages: make(map[string]*PageState)}
}

// Get returns the state of pageID, creating it if needed.
func (r *Registry) Get(pageID string) *PageState {
	r.mu.RLock()
	p, ok := r.pages[pageID]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pages[pageID]; ok {
		return p
	}
	p = newPageState(pageID, r.capacity)
	r.pages[pageID] = p
	return p
}

// Lookup returns the state of pageID without creating it.
func (r *Registry) Lookup(pageID string) (*PageState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pages[pageID]
	return p, ok
}

// Pages returns the known page ids in sorted order.
func (r *Registry) Pages() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.pages))
	for id := range r.pages {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of pages with state.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pages)
}

// Capacity returns the per-page message capacity.
func (r *Registry) Capacity() int { return r.capacity }

// Stats returns a summary of every page, sorted by page id.
func (r *Registry) Stats() []PageStats {
	ids := r.Pages()
	out := make([]PageStats, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.Lookup(id); ok {
			out = append(out, p.Stats())
		}
	}
	return out
}
