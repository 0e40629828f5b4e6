// Package session maps session tokens to the pages they may act for and
// holds each page's access token.
package session

import (
	"errors"
	"sort"
	"sync"

	"pagedesk/pkg/config"
)

// ErrPageNotFound is returned when a page has no configured access token.
var ErrPageNotFound = errors.New("page not found")

// Page is a page the service can act for.
type Page struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	token string
}

type grant struct {
	user  string
	pages map[string]struct{}
}

// Store is an in-memory session and page token table.
type Store struct {
	mu       sync.RWMutex
	pages    map[string]Page
	sessions map[string]grant
}

// New builds a Store from configured pages and sessions.
func New(pages []config.PageConfig, sessions []config.SessionConfig) *Store {
	s := &Store{
		pages:    make(map[string]Page, len(pages)),
		sessions: make(map[string]grant, len(sessions)),
	}
	for _, p := range pages {
		s.pages[p.ID] = Page{ID: p.ID, Name: p.Name, token: p.AccessToken}
	}
	for _, sc := range sessions {
		g := grant{user: sc.User, pages: make(map[string]struct{}, len(sc.Pages))}
		for _, id := range sc.Pages {
			g.pages[id] = struct{}{}
		}
		s.sessions[sc.Token] = g
	}
	return s
}

// Authenticated reports whether token is a known session.
func (s *Store) Authenticated(token string) bool {
	if token == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[token]
	return ok
}

// Can reports whether the session may act for pageID.
func (s *Store) Can(token, pageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.sessions[token]
	if !ok {
		return false
	}
	_, ok = g.pages[pageID]
	return ok
}

// User returns the user name bound to a session.
func (s *Store) User(token string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[token].user
}

// PageToken returns the access token of pageID.
func (s *Store) PageToken(pageID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[pageID]
	if !ok || p.token == "" {
		return "", false
	}
	return p.token, true
}

// Pages lists the pages a session may act for, sorted by id.
func (s *Store) Pages(token string) []Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.sessions[token]
	if !ok {
		return nil
	}
	out := make([]Page, 0, len(g.pages))
	for id := range g.pages {
		if p, ok := s.pages[id]; ok {
			out = append(out, p)
		} else {
			out = append(out, Page{ID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
