package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := CORS([]string{"https://ops.example.com"})(next)

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://ops.example.com", true},
		{"http://localhost:3000", true},
		{"http://localhost", true},
		{"http://localhost.evil.com", false},
		{"https://other.example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTeapot, rec.Code)
		if tt.allowed {
			assert.Equal(t, tt.origin, rec.Header().Get("Access-Control-Allow-Origin"), tt.origin)
		} else {
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), tt.origin)
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/test_publish", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)
}
