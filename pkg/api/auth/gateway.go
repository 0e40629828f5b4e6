package auth

import (
	"net"
	"strings"

	"github.com/valyala/fasthttp"

	"pagedesk/pkg/api/router"
	"pagedesk/pkg/api/utils"
	"pagedesk/pkg/logger"
)

// Gateway authenticates requests before they reach the router.
type Gateway struct {
	cfg      SecConfig
	limiters *limiterPool
}

// NewGateway returns a gateway for cfg.
func NewGateway(cfg SecConfig) *Gateway {
	return &Gateway{cfg: cfg, limiters: newLimiterPool(cfg)}
}

// Close stops the limiter cleanup loop.
func (g *Gateway) Close() { g.limiters.Shutdown() }

// Middleware wraps next with CORS, IP whitelist, role and rate limit checks.
func (g *Gateway) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	cfg := g.cfg
	return func(ctx *fasthttp.RequestCtx) {
		logger.LogRequestFast(ctx)

		// cors headers and handle options shortcut
		origin := utils.GetHeader(ctx, "Origin")
		if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
			ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
			ctx.Response.Header.Set("Vary", "Origin")
			ctx.Response.Header.Set("Access-Control-Allow-Credentials", "true")
			ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			ctx.Response.Header.Set("Access-Control-Max-Age", "600")
			ctx.Response.Header.Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key,X-Session-Token")
			ctx.Response.Header.Set("Access-Control-Expose-Headers", "X-Role-Name")
		}
		if string(ctx.Method()) == fasthttp.MethodOptions {
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}

		// the platform calls /webhook from its own address ranges
		if len(cfg.IPWhitelist) > 0 && !webhookPath(ctx) {
			ip := clientIPFast(ctx)
			logger.Debug("ip_check", "ip", ip)
			if !ipWhitelisted(ip, cfg.IPWhitelist) {
				router.WriteJSONError(ctx, fasthttp.StatusForbidden, "forbidden")
				logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", utils.GetPath(ctx))
				return
			}
		}

		if publicAllowedPath(ctx) {
			ctx.Request.Header.Set("X-Role-Name", RoleUnauth.String())
			next(ctx)
			return
		}

		// admin keys only open /admin, session tokens only open /api
		role, key := resolveRole(ctx, cfg)
		if role == RoleUnauth {
			router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "unauthorized")
			logger.Warn("request_unauthorized", "path", utils.GetPath(ctx), "remote", ctx.RemoteAddr().String())
			return
		}
		ctx.Request.Header.Set("X-Role-Name", role.String())

		if !g.limiters.Allow(key) {
			router.WriteJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
			logger.Warn("rate_limited", "role", role.String(), "path", utils.GetPath(ctx))
			return
		}

		next(ctx)
	}
}

// resolveRole returns the caller role and the key it is rate limited by.
// Session validity is left to the query service, which knows the grants.
func resolveRole(ctx *fasthttp.RequestCtx, cfg SecConfig) (Role, string) {
	if utils.HasPathPrefix(ctx, "/admin") {
		key := utils.ExtractAPIKey(ctx)
		if _, ok := cfg.AdminKeys[key]; ok && key != "" {
			return RoleAdmin, key
		}
		return RoleUnauth, ""
	}
	if utils.HasPathPrefix(ctx, "/api/") {
		if tok := utils.ExtractSessionToken(ctx); tok != "" {
			if _, isAdmin := cfg.AdminKeys[tok]; isAdmin {
				return RoleUnauth, ""
			}
			return RoleSession, tok
		}
	}
	return RoleUnauth, ""
}

func clientIPFast(ctx *fasthttp.RequestCtx) string {
	host := ctx.RemoteAddr().String()
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	return h
}

func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func ipWhitelisted(ip string, list []string) bool {
	for _, w := range list {
		if ip == w {
			return true
		}
	}
	return false
}

func webhookPath(ctx *fasthttp.RequestCtx) bool {
	return utils.HasPath(ctx, "/webhook")
}

func publicAllowedPath(ctx *fasthttp.RequestCtx) bool {
	path := utils.GetPath(ctx)
	method := string(ctx.Method())

	if path == "/webhook" && (method == fasthttp.MethodGet || method == fasthttp.MethodPost) {
		return true
	}
	if (path == "/healthz" || path == "/readyz") && method == fasthttp.MethodGet {
		return true
	}
	return false
}
