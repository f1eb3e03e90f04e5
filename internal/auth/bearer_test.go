package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBearerTokenAuth_IsAuthorized(t *testing.T) {
	auth := NewBearerTokenAuth("secret-token")

	tests := []struct {
		name       string
		authHeader string
		expected   bool
	}{
		{name: "valid bearer token", authHeader: "Bearer secret-token", expected: true},
		{name: "invalid token", authHeader: "Bearer wrong-token", expected: false},
		{name: "missing bearer prefix", authHeader: "secret-token", expected: false},
		{name: "empty header", authHeader: "", expected: false},
		{name: "only bearer", authHeader: "Bearer", expected: false},
		{name: "bearer with space only", authHeader: "Bearer ", expected: false},
		{name: "case sensitive token", authHeader: "Bearer SECRET-TOKEN", expected: false},
		{name: "token prefix only", authHeader: "Bearer secret", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			assert.Equal(t, tt.expected, auth.IsAuthorized(req))
		})
	}
}

func TestBearerTokenAuth_EmptyConfiguredToken(t *testing.T) {
	auth := NewBearerTokenAuth("")
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	assert.False(t, auth.IsAuthorized(req))
}

func TestBearerTokenAuth_SetUnauthorizedHeaders(t *testing.T) {
	auth := NewBearerTokenAuth("test-token")
	w := httptest.NewRecorder()

	auth.SetUnauthorizedHeaders(w)

	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestBearerTokenAuth_Middleware(t *testing.T) {
	auth := NewBearerTokenAuth("test-token")
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("authorized passes through", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/feedback", nil)
		req.Header.Set("Authorization", "Bearer test-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusTeapot, w.Code)
	})

	t.Run("unauthorized is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/feedback", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
		assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
	})
}
