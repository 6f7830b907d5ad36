package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type ctxKey string

const ctxUserCredentials ctxKey = "ORDERLINE_USER_CREDENTIALS"

// Access levels for platform users. Global users operate across stores and
// carry no bound store; store users are confined to exactly one.
const (
	AccessGlobal = "global"
	AccessStore  = "store"
)

// Credentials is the authenticated identity attached to the request context.
type Credentials struct {
	UserID      int64
	Email       string
	AccessLevel string
	StoreID     *int64
}

// UserFromContext extracts the authenticated credentials, if any.
func UserFromContext(ctx context.Context) (*Credentials, bool) {
	v := ctx.Value(ctxUserCredentials)
	if v == nil {
		return nil, false
	}
	creds, ok := v.(*Credentials)
	return creds, ok
}

// WithUser stores credentials on the context. Exposed for tests and tooling.
func WithUser(ctx context.Context, creds *Credentials) context.Context {
	return context.WithValue(ctx, ctxUserCredentials, creds)
}

// VerifyFunc validates the incoming bearer token and returns credentials.
type VerifyFunc func(ctx context.Context, token string) (*Credentials, error)

// JWT parses the request's bearer token and sets the context credentials.
// Requests without a token pass through anonymous; routes that require
// authentication enforce it themselves.
func JWT(verify VerifyFunc) func(http.Handler) http.Handler {
	if verify == nil {
		panic("auth.JWT: verify func must not be nil")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, found := ExtractBearerToken(r)
			if !found || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			creds, err := verify(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="api", error="invalid_token", error_description="%s"`, err.Error()))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), creds)))
		})
	}
}

// RequireAccess gates a route group on the caller's access level.
// "global" admits only platform-wide operators; "store" admits any
// authenticated user.
func RequireAccess(level string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, ok := UserFromContext(r.Context())
			if !ok || creds == nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			switch level {
			case AccessGlobal:
				if creds.AccessLevel != AccessGlobal {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
			case AccessStore:
				// any authenticated user
			default:
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ExtractBearerToken pulls the token out of the Authorization header.
func ExtractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(authHeader[len(prefix):]), true
}
