package utils

import (
	"strings"

	"github.com/valyala/fasthttp"
)

// SessionCookie is the cookie carrying a session token.
const SessionCookie = "pagedesk_session"

// Extracts an API key from either the Authorization header or the X-API-Key header
func ExtractAPIKey(ctx *fasthttp.RequestCtx) string {
	if tok := bearer(ctx); tok != "" {
		return tok
	}
	return GetHeader(ctx, "X-API-Key")
}

// Extracts a session token from the Authorization header, the
// X-Session-Token header or the session cookie, in that order
func ExtractSessionToken(ctx *fasthttp.RequestCtx) string {
	if tok := bearer(ctx); tok != "" {
		return tok
	}
	if tok := GetHeader(ctx, "X-Session-Token"); tok != "" {
		return tok
	}
	return strings.TrimSpace(string(ctx.Request.Header.Cookie(SessionCookie)))
}

// "Bearer <token>" with flexible whitespace
func bearer(ctx *fasthttp.RequestCtx) string {
	auth := GetHeader(ctx, "Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.Fields(auth)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}
