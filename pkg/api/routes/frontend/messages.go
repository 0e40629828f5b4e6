// Package frontend serves the dashboard API used by logged-in operators.
package frontend

import (
	"github.com/valyala/fasthttp"

	"pagedesk/pkg/api/router"
	"pagedesk/pkg/api/utils"
	"pagedesk/pkg/query"
	"pagedesk/pkg/session"
	"pagedesk/pkg/store"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// Handler serves /api routes.
type Handler struct {
	Query    *query.Service
	Sessions *session.Store
	Pages    *store.Registry
	Sender   Sender
}

// Messages handles GET /api/messages/{pageId}.
func (h *Handler) Messages(ctx *fasthttp.RequestCtx) {
	pageID := utils.GetPathParam(ctx, "pageId")
	limit := utils.GetQueryInt(ctx, "limit", defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := utils.GetQueryInt(ctx, "offset", 0)

	page, err := h.Query.Messages(utils.ExtractSessionToken(ctx), pageID, utils.GetQuery(ctx, "senderId"), limit, offset)
	if err != nil {
		router.WriteServiceError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, page)
}

// Conversations handles GET /api/conversations/{pageId}.
func (h *Handler) Conversations(ctx *fasthttp.RequestCtx) {
	convs, err := h.Query.Conversations(utils.ExtractSessionToken(ctx), utils.GetPathParam(ctx, "pageId"))
	if err != nil {
		router.WriteServiceError(ctx, err)
		return
	}
	router.WriteJSONOk(ctx, map[string]interface{}{"conversations": convs})
}

// MarkRead handles POST /api/mark-read/{pageId}/{senderId}.
func (h *Handler) MarkRead(ctx *fasthttp.RequestCtx) {
	pageID := utils.GetPathParam(ctx, "pageId")
	senderID := utils.GetPathParam(ctx, "senderId")
	if err := h.Query.MarkRead(utils.ExtractSessionToken(ctx), pageID, senderID); err != nil {
		router.WriteServiceError(ctx, err)
		return
	}
	router.WriteJSONOk(ctx, map[string]interface{}{"success": true})
}

// ListPages handles GET /api/pages.
func (h *Handler) ListPages(ctx *fasthttp.RequestCtx) {
	token := utils.ExtractSessionToken(ctx)
	if !h.Sessions.Authenticated(token) {
		router.WriteServiceError(ctx, query.ErrUnauthenticated)
		return
	}
	pages := h.Sessions.Pages(token)
	if pages == nil {
		pages = []session.Page{}
	}
	router.WriteJSONOk(ctx, map[string]interface{}{
		"user":  h.Sessions.User(token),
		"pages": pages,
	})
}
