package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	platformauth "github.com/orderline-app/orderline/platform/go/auth"
	platformlogging "github.com/orderline-app/orderline/platform/go/logging"
	"github.com/orderline-app/orderline/platform/go/persistence"
	"github.com/orderline-app/orderline/platform/go/tenant"
)

// StoreIDHeader lets API clients select a store explicitly. An authenticated
// non-global user's bound store always wins over it.
const StoreIDHeader = "x-store-id"

// storeCookieName carries the store selected earlier in a browser session.
const storeCookieName = "orderline_store"

// StoreConnector is the slice of the connection cache this middleware needs.
type StoreConnector interface {
	Get(ctx context.Context, storeID int64) (tenant.Conn, error)
}

// WithStoreContext resolves the active store for each request and attaches
// the store facade to the context. Requests without any store id run
// master-only, which is correct for global admin operations. A store id that
// fails to resolve is a client error; falling back to the master database
// would break data isolation.
func WithStoreContext(cache StoreConnector, validator *persistence.SettingsValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	if cache == nil {
		panic("store middleware: connection cache is required")
	}
	if validator == nil {
		panic("store middleware: settings validator is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			storeID, found, err := storeIDFromRequest(r)
			if err != nil {
				http.Error(w, "invalid store id", http.StatusBadRequest)
				return
			}
			if !found {
				next.ServeHTTP(w, r)
				return
			}

			conn, err := cache.Get(r.Context(), storeID)
			if err != nil {
				reqLogger := platformlogging.FromRequest(r, logger)
				if errors.Is(err, tenant.ErrStoreNotFound) || errors.Is(err, tenant.ErrStoreInactive) {
					if reqLogger != nil {
						reqLogger.Warn("rejected request for unresolvable store",
							zap.Int64("store_id", storeID),
							zap.Error(err),
						)
					}
					http.Error(w, "invalid store configuration", http.StatusBadRequest)
					return
				}
				if reqLogger != nil {
					reqLogger.Error("store connection failed",
						zap.Int64("store_id", storeID),
						zap.Error(err),
					)
				}
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
				return
			}

			facade := persistence.NewStoreFacade(conn, validator, platformlogging.FromRequest(r, logger))
			ctx := tenant.WithSpace(r.Context(), facade.Space)
			ctx = persistence.WithStoreFacade(ctx, facade)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// storeIDFromRequest applies the precedence rule: authenticated non-global
// user's bound store, then the x-store-id header, then the session cookie.
func storeIDFromRequest(r *http.Request) (int64, bool, error) {
	if creds, ok := platformauth.UserFromContext(r.Context()); ok && creds != nil {
		if creds.AccessLevel != platformauth.AccessGlobal && creds.StoreID != nil {
			return *creds.StoreID, true, nil
		}
	}

	if raw := r.Header.Get(StoreIDHeader); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return 0, false, errors.New("malformed store id header")
		}
		return id, true, nil
	}

	if cookie, err := r.Cookie(storeCookieName); err == nil && cookie.Value != "" {
		id, err := strconv.ParseInt(cookie.Value, 10, 64)
		if err != nil || id <= 0 {
			return 0, false, errors.New("malformed store cookie")
		}
		return id, true, nil
	}

	return 0, false, nil
}
