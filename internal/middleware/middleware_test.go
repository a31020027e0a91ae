package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusinessScope(t *testing.T) {
	var seen string
	handler := BusinessScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = BusinessID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("header present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
		req.Header.Set(BusinessHeader, " biz-1 ")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "biz-1", seen)
	})

	t.Run("header missing", func(t *testing.T) {
		seen = ""
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/accounts", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), BusinessHeader)
		assert.Empty(t, seen)
	})
}

func TestBusinessID_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := BusinessID(req.Context())
	assert.False(t, ok)
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestStaticFileServer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openapi.yaml"), []byte("openapi: 3.0.3\n"), 0o644))
	server := http.StripPrefix("/api-docs", StaticFileServer(dir))

	t.Run("serves yaml", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-docs/openapi.yaml", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "openapi: 3.0.3")
	})

	t.Run("missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-docs/missing.yaml", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("no traversal", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-docs/../../etc/passwd", nil))
		assert.NotEqual(t, http.StatusOK, w.Code)
	})
}

func TestLongRunning(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := LongRunning(30*time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
		w.WriteHeader(http.StatusOK)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/transactions/import", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), deadline, time.Minute)
}

func TestLongRunning_RealConnection(t *testing.T) {
	server := httptest.NewServer(LongRunning(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})))
	defer server.Close()

	resp, err := http.Post(server.URL, "text/csv", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}
