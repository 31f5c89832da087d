package httpmiddleware

import (
	"context"
	"net/http"
)

type authorizationKey struct{}

// AuthorizationFromContext returns the caller's Authorization header value
// stored by ForwardAuthorization, or "".
func AuthorizationFromContext(ctx context.Context) string {
	v, _ := ctx.Value(authorizationKey{}).(string)
	return v
}

// WithAuthorization stores an Authorization header value in ctx.
func WithAuthorization(ctx context.Context, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, authorizationKey{}, v)
}

// ForwardAuthorization keeps the incoming Authorization header in the request
// context so that outgoing calls on the caller's behalf can reuse it. The
// header is not validated here.
func ForwardAuthorization() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithAuthorization(r.Context(), r.Header.Get("Authorization"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
