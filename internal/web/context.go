package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/roster/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for the
// extraction log. RemoteAddr has already been resolved by TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
