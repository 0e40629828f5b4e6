// Package profile resolves the display profile of a message sender.
package profile

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pagedesk/pkg/graph"
	"pagedesk/pkg/logger"
	"pagedesk/pkg/models"
)

// DefaultTimeout bounds a single profile lookup.
const DefaultTimeout = 3 * time.Second

// TokenSource yields the access token of a page.
type TokenSource interface {
	PageToken(pageID string) (string, bool)
}

// Lookup fetches a user node from the Graph API.
type Lookup interface {
	GetProfile(ctx context.Context, userID, token string) (graph.UserProfile, error)
}

var lookups = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "pagedesk_profile_lookups_total",
	Help: "Sender profile lookups by outcome.",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(lookups)
}

// Resolver turns a sender id into a profile snapshot. It never fails:
// any problem yields models.FallbackProfile.
type Resolver struct {
	tokens  TokenSource
	client  Lookup
	timeout time.Duration
}

// NewResolver builds a Resolver. A non-positive timeout means DefaultTimeout.
func NewResolver(tokens TokenSource, client Lookup, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{tokens: tokens, client: client, timeout: timeout}
}

// Resolve looks up senderID with pageID's token.
func (r *Resolver) Resolve(ctx context.Context, senderID, pageID string) models.Profile {
	token, ok := r.tokens.PageToken(pageID)
	if !ok || token == "" {
		logger.Warn("sender_info_no_token", "page_id", pageID, "sender_id", senderID)
		lookups.WithLabelValues("no_token").Inc()
		return models.FallbackProfile(senderID)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	up, err := r.client.GetProfile(ctx, senderID, token)
	if err != nil {
		logger.Warn("sender_info_lookup_failed", "page_id", pageID, "sender_id", senderID, "error", err)
		lookups.WithLabelValues("failed").Inc()
		return models.FallbackProfile(senderID)
	}
	lookups.WithLabelValues("ok").Inc()

	id := up.ID
	if id == "" {
		id = senderID
	}
	return models.Profile{
		ID:         id,
		FirstName:  up.FirstName,
		LastName:   up.LastName,
		Name:       displayName(up.FirstName, up.LastName),
		ProfilePic: up.ProfilePic,
	}
}

func displayName(first, last string) string {
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return models.UnknownUserName
	}
	return name
}
