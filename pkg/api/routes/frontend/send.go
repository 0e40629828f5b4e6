package frontend

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"pagedesk/pkg/api/router"
	"pagedesk/pkg/api/utils"
	"pagedesk/pkg/graph"
	"pagedesk/pkg/logger"
	"pagedesk/pkg/session"
	"pagedesk/pkg/timeutil"
)

const sendTimeout = 10 * time.Second

// Sender posts outbound messages. *graph.Client satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, token, recipientID, text string) (graph.SendResult, error)
	SendOneTimeNotification(ctx context.Context, token, otnToken, text string) (graph.SendResult, error)
}

type sendRequest struct {
	RecipientID string `json:"recipientId"`
	Message     string `json:"message"`
	OTNToken    string `json:"otnToken,omitempty"`
}

func decodeSend(ctx *fasthttp.RequestCtx) (sendRequest, bool) {
	var req sendRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return req, false
	}
	req.RecipientID = strings.TrimSpace(req.RecipientID)
	if req.RecipientID == "" || strings.TrimSpace(req.Message) == "" {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "recipientId and message are required")
		return req, false
	}
	return req, true
}

// pageToken authorizes the caller for pageID and returns the page token.
func (h *Handler) pageToken(ctx *fasthttp.RequestCtx, pageID string) (string, bool) {
	if err := h.Query.Authorize(utils.ExtractSessionToken(ctx), pageID); err != nil {
		router.WriteServiceError(ctx, err)
		return "", false
	}
	token, ok := h.Sessions.PageToken(pageID)
	if !ok {
		router.WriteServiceError(ctx, session.ErrPageNotFound)
		return "", false
	}
	return token, true
}

// SendMessage handles POST /api/send-message/{pageId}.
func (h *Handler) SendMessage(ctx *fasthttp.RequestCtx) {
	pageID := utils.GetPathParam(ctx, "pageId")
	token, ok := h.pageToken(ctx, pageID)
	if !ok {
		return
	}
	req, ok := decodeSend(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	res, err := h.Sender.SendMessage(cctx, token, req.RecipientID, req.Message)
	if err != nil {
		logger.Warn("send_message_failed", "page", pageID, "recipient", req.RecipientID, "error", err)
		router.WriteServiceError(ctx, err)
		return
	}
	logger.Info("message_sent", "page", pageID, "recipient", req.RecipientID, "mid", res.MessageID)
	router.WriteJSONOk(ctx, map[string]interface{}{"success": true, "messageId": res.MessageID})
}

// SendOTN handles POST /api/send-otn/{pageId}. Without an otnToken in the
// body the recipient's stored opt-in token is used, and put back if the
// send fails.
func (h *Handler) SendOTN(ctx *fasthttp.RequestCtx) {
	pageID := utils.GetPathParam(ctx, "pageId")
	token, ok := h.pageToken(ctx, pageID)
	if !ok {
		return
	}
	req, ok := decodeSend(ctx)
	if !ok {
		return
	}

	otn := strings.TrimSpace(req.OTNToken)
	consumed := false
	if otn == "" {
		if p, found := h.Pages.Lookup(pageID); found {
			otn, consumed = p.ConsumeOptin(req.RecipientID)
		}
	}
	if otn == "" {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "no one-time notification token for recipient")
		return
	}

	cctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	res, err := h.Sender.SendOneTimeNotification(cctx, token, otn, req.Message)
	if err != nil {
		if consumed {
			h.Pages.Get(pageID).RecordOptin(req.RecipientID, otn, timeutil.NowMillis())
		}
		logger.Warn("send_otn_failed", "page", pageID, "recipient", req.RecipientID, "error", err)
		router.WriteServiceError(ctx, err)
		return
	}
	logger.Info("otn_sent", "page", pageID, "recipient", req.RecipientID, "mid", res.MessageID)
	router.WriteJSONOk(ctx, map[string]interface{}{"success": true, "messageId": res.MessageID})
}
