package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-gigs/internal/logger"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	userNameKey contextKey = "user_name"
)

// Middleware rejects requests without a valid bearer token and stores the
// caller's id and display name in the request context.
func Middleware(v Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			claims, err := v.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("TOKEN_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.Subject, claims.Name)))
		})
	}
}

// Optional attaches the caller when a valid token is present and lets
// anonymous requests through otherwise.
func Optional(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rawToken, err := ExtractTokenFromRequest(r); err == nil {
				if claims, err := v.Verify(r.Context(), rawToken); err == nil {
					r = r.WithContext(WithUser(r.Context(), claims.Subject, claims.Name))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithUser(ctx context.Context, userID, name string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, userNameKey, name)
}

// UserID returns the authenticated caller, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

func UserName(ctx context.Context) string {
	if name, ok := ctx.Value(userNameKey).(string); ok {
		return name
	}
	return ""
}
