// Package query serves authorized, read-mostly views of page state.
package query

import (
	"errors"

	"pagedesk/pkg/models"
	"pagedesk/pkg/store"
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("access to page denied")
)

// Authorizer answers session questions for the query layer.
type Authorizer interface {
	Authenticated(session string) bool
	Can(session, pageID string) bool
}

// Service checks access and reads from the page registry.
type Service struct {
	auth  Authorizer
	pages *store.Registry
}

// New builds a Service.
func New(auth Authorizer, pages *store.Registry) *Service {
	return &Service{auth: auth, pages: pages}
}

// Authorize returns ErrUnauthenticated or ErrForbidden when session may not
// act for pageID.
func (s *Service) Authorize(session, pageID string) error {
	if !s.auth.Authenticated(session) {
		return ErrUnauthenticated
	}
	if !s.auth.Can(session, pageID) {
		return ErrForbidden
	}
	return nil
}

// Messages returns a page of messages, newest first. A non-empty
// counterpart restricts the result to messages sent by or to it.
func (s *Service) Messages(session, pageID, counterpart string, limit, offset int) (models.MessagePage, error) {
	if err := s.Authorize(session, pageID); err != nil {
		return models.MessagePage{}, err
	}
	p, ok := s.pages.Lookup(pageID)
	if !ok {
		return models.MessagePage{Messages: []models.Message{}}, nil
	}
	return p.Messages(counterpart, limit, offset), nil
}

// Conversations lists the page's conversations, most recent first.
func (s *Service) Conversations(session, pageID string) ([]models.Conversation, error) {
	if err := s.Authorize(session, pageID); err != nil {
		return nil, err
	}
	p, ok := s.pages.Lookup(pageID)
	if !ok {
		return []models.Conversation{}, nil
	}
	return p.Conversations(), nil
}

// MarkRead resets the unread count of a conversation. Unknown
// conversations are a no-op.
func (s *Service) MarkRead(session, pageID, senderID string) error {
	if err := s.Authorize(session, pageID); err != nil {
		return err
	}
	if p, ok := s.pages.Lookup(pageID); ok {
		p.MarkRead(senderID)
	}
	return nil
}
