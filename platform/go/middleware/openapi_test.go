package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/orderline-app/orderline/contracts"
)

func adminRouter(t *testing.T) http.Handler {
	t.Helper()

	validator, err := NewContractValidator(contracts.Admin())
	require.NoError(t, err)

	api := chi.NewRouter()
	api.Use(validator)
	api.Post("/stores", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	api.Get("/stores", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	root := chi.NewRouter()
	root.Mount("/api/v1", api)
	return root
}

func TestContractValidatorPassesConformingRequest(t *testing.T) {
	router := adminRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stores", strings.NewReader(`{"name":"Arepas Lucia","slug":"arepas-lucia"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestContractValidatorRejectsBodyViolations(t *testing.T) {
	router := adminRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"name wrong type", `{"name":42}`},
		{"missing name", `{"slug":"arepas-lucia"}`},
		{"bad slug pattern", `{"name":"Arepas","slug":"Not A Slug"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/stores", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer some-token")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestContractValidatorRejectsMalformedQuery(t *testing.T) {
	router := adminRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores?includeInactive=maybe", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContractValidatorRequiresBearerToken(t *testing.T) {
	router := adminRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestContractValidatorRejectsUnknownRoute(t *testing.T) {
	validator, err := NewContractValidator(contracts.Admin())
	require.NoError(t, err)

	api := chi.NewRouter()
	api.Use(validator)
	api.Get("/surprise", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	root := chi.NewRouter()
	root.Mount("/api/v1", api)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/surprise", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	root.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
