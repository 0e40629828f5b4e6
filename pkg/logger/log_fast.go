package logger

import (
	"strings"
	"unicode/utf8"

	"github.com/valyala/fasthttp"
)

var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"cookie":              {},
	"x-api-key":           {},
	"x-session-token":     {},
	"x-hub-signature-256": {},
}

func maskedValue(v string) string {
	if v == "" {
		return ""
	}
	if utf8.RuneCountInString(v) <= 2 {
		return "<redacted>"
	}
	first, _ := utf8.DecodeRuneInString(v)
	last, _ := utf8.DecodeLastRuneInString(v)
	return string(first) + "*****" + string(last)
}

func redactHeaderValue(key, v string) string {
	if _, ok := sensitiveHeaders[strings.ToLower(key)]; ok {
		return maskedValue(v)
	}
	return v
}

// SafeHeadersFast builds a redacted header string for fasthttp requests.
func SafeHeadersFast(ctx *fasthttp.RequestCtx) string {
	parts := make([]string, 0)
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		key := string(k)
		parts = append(parts, key+"="+redactHeaderValue(key, string(v)))
	})
	return strings.Join(parts, "; ")
}

// LogRequestFast logs a concise, safe summary of an incoming fasthttp request.
func LogRequestFast(ctx *fasthttp.RequestCtx) {
	if Log == nil {
		return
	}
	Debug("incoming_request", "method", string(ctx.Method()), "path", string(ctx.Path()), "remote", ctx.RemoteAddr().String(), "headers", SafeHeadersFast(ctx))
}
