package router

import (
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"

	"pagedesk/pkg/graph"
	"pagedesk/pkg/query"
	"pagedesk/pkg/session"
)

// WriteJSON writes a JSON response.
func WriteJSON(ctx *fasthttp.RequestCtx, data interface{}) error {
	ctx.Response.Header.Set("Content-Type", "application/json")
	return json.NewEncoder(ctx).Encode(data)
}

// WriteJSONError writes a JSON error response.
func WriteJSONError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetStatusCode(status)
	ctx.Response.Header.Set("Content-Type", "application/json")
	_ = json.NewEncoder(ctx).Encode(map[string]string{"error": message})
}

// WriteJSONOk writes a simple OK JSON response.
func WriteJSONOk(ctx *fasthttp.RequestCtx, data map[string]interface{}) {
	ctx.Response.Header.Set("Content-Type", "application/json")
	_ = json.NewEncoder(ctx).Encode(data)
}

// WriteServiceError maps service errors to status codes.
func WriteServiceError(ctx *fasthttp.RequestCtx, err error) {
	var apiErr *graph.APIError
	switch {
	case errors.Is(err, query.ErrUnauthenticated):
		WriteJSONError(ctx, fasthttp.StatusUnauthorized, "not authenticated")
	case errors.Is(err, query.ErrForbidden):
		WriteJSONError(ctx, fasthttp.StatusForbidden, "access to page denied")
	case errors.Is(err, session.ErrPageNotFound), errors.Is(err, graph.ErrNoToken):
		WriteJSONError(ctx, fasthttp.StatusNotFound, "page not found")
	case errors.As(err, &apiErr):
		WriteJSONError(ctx, fasthttp.StatusBadGateway, apiErr.Error())
	default:
		WriteJSONError(ctx, fasthttp.StatusInternalServerError, "internal error")
	}
}
