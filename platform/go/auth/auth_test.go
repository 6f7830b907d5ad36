package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func okHandler(sawCreds **Credentials) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if creds, ok := UserFromContext(r.Context()); ok {
			*sawCreds = creds
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTPassesThroughWithoutToken(t *testing.T) {
	var saw *Credentials
	mw := JWT(func(ctx context.Context, token string) (*Credentials, error) {
		t.Fatal("verify must not be called without a token")
		return nil, nil
	})

	rec := httptest.NewRecorder()
	mw(okHandler(&saw)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, saw)
}

func TestJWTAttachesCredentials(t *testing.T) {
	want := &Credentials{UserID: 4, Email: "owner@test", AccessLevel: AccessStore}
	mw := JWT(func(ctx context.Context, token string) (*Credentials, error) {
		require.Equal(t, "tok-123", token)
		return want, nil
	})

	var saw *Credentials
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	rec := httptest.NewRecorder()
	mw(okHandler(&saw)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, want, saw)
}

func TestJWTRejectsInvalidToken(t *testing.T) {
	mw := JWT(func(ctx context.Context, token string) (*Credentials, error) {
		return nil, errors.New("token is expired")
	})

	var saw *Credentials
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec := httptest.NewRecorder()
	mw(okHandler(&saw)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	require.Nil(t, saw)
}

func TestRequireAccess(t *testing.T) {
	storeID := int64(5)
	global := &Credentials{UserID: 1, AccessLevel: AccessGlobal}
	store := &Credentials{UserID: 2, AccessLevel: AccessStore, StoreID: &storeID}

	cases := []struct {
		name     string
		level    string
		creds    *Credentials
		wantCode int
	}{
		{"global route, global user", AccessGlobal, global, http.StatusOK},
		{"global route, store user", AccessGlobal, store, http.StatusForbidden},
		{"global route, anonymous", AccessGlobal, nil, http.StatusForbidden},
		{"store route, store user", AccessStore, store, http.StatusOK},
		{"store route, global user", AccessStore, global, http.StatusOK},
		{"store route, anonymous", AccessStore, nil, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var saw *Credentials
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.creds != nil {
				req = req.WithContext(WithUser(req.Context(), tc.creds))
			}
			rec := httptest.NewRecorder()
			RequireAccess(tc.level)(okHandler(&saw)).ServeHTTP(rec, req)
			require.Equal(t, tc.wantCode, rec.Code)
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, found := ExtractBearerToken(req)
	require.False(t, found)

	req.Header.Set("Authorization", "Bearer  abc ")
	token, found := ExtractBearerToken(req)
	require.True(t, found)
	require.Equal(t, "abc", token)

	req.Header.Set("Authorization", "bearer xyz")
	token, found = ExtractBearerToken(req)
	require.True(t, found)
	require.Equal(t, "xyz", token)

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, found = ExtractBearerToken(req)
	require.False(t, found)
}
