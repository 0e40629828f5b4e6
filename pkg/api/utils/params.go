package utils

import (
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
)

// GetHeader returns header value with trimming
func GetHeader(ctx *fasthttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.Request.Header.Peek(key)))
}

// GetQuery returns query parameter value with trimming
func GetQuery(ctx *fasthttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.QueryArgs().Peek(key)))
}

// GetQueryInt returns query parameter value as integer, with default fallback
func GetQueryInt(ctx *fasthttp.RequestCtx, key string, defaultValue int) int {
	value := GetQuery(ctx, key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

// GetPathParam returns path parameter value
func GetPathParam(ctx *fasthttp.RequestCtx, param string) string {
	if v, ok := ctx.UserValue(param).(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
