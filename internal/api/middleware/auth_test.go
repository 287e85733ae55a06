package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safetrail/safetrail/internal/api/middleware"
	"github.com/safetrail/safetrail/internal/auth"
)

func testValidator() *auth.Validator {
	return auth.NewValidator(auth.Config{
		SigningKey: "test-signing-key-do-not-use-in-production",
		Issuer:     "https://id.safetrail.io",
		Audience:   "safetrail-api",
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_MissingAuthorizationHeader(t *testing.T) {
	handler := middleware.Auth(testValidator())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestAuth_InvalidAuthorizationFormat(t *testing.T) {
	handler := middleware.Auth(testValidator())(okHandler())

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"just bearer", "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuth_ValidToken(t *testing.T) {
	validator := testValidator()

	var gotOperator string
	handler := middleware.Auth(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOperator = middleware.GetOperatorID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token, err := validator.Sign("op-42", auth.RoleOperator, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "op-42", gotOperator)
}

func TestAuth_ExpiredToken(t *testing.T) {
	validator := testValidator()
	handler := middleware.Auth(validator)(okHandler())

	token, err := validator.Sign("op-42", auth.RoleOperator, -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestRequireAdmin(t *testing.T) {
	validator := testValidator()
	handler := middleware.Auth(validator)(middleware.RequireAdmin(okHandler()))

	tests := []struct {
		name string
		role auth.Role
		want int
	}{
		{"operator rejected", auth.RoleOperator, http.StatusForbidden},
		{"admin allowed", auth.RoleAdmin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := validator.Sign("op-1", tt.role, time.Hour)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodDelete, "/v1/zones/z-1", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireAdminWithoutAuth(t *testing.T) {
	handler := middleware.RequireAdmin(okHandler())

	req := httptest.NewRequest(http.MethodDelete, "/v1/zones/z-1", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetOperatorIDUnauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	assert.Empty(t, middleware.GetOperatorID(req.Context()))
}
