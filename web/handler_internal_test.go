package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeReturnToPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty defaults to root",
			input:    "",
			expected: "/",
		},
		{
			name:     "relative path is allowed",
			input:    "/p/123",
			expected: "/p/123",
		},
		{
			name:     "relative path with query is allowed",
			input:    "/p/123?tab=comments",
			expected: "/p/123?tab=comments",
		},
		{
			name:     "relative path with fragment is allowed",
			input:    "/p/123#comments",
			expected: "/p/123#comments",
		},
		{
			name:     "missing leading slash is rejected",
			input:    "p/123",
			expected: "/",
		},
		{
			name:     "absolute url is rejected",
			input:    "https://evil.com",
			expected: "/",
		},
		{
			name:     "protocol relative url is rejected",
			input:    "//evil.com",
			expected: "/",
		},
		{
			name:     "triple slash is rejected",
			input:    "///evil.com",
			expected: "/",
		},
		{
			name:     "absolute url text as local path is allowed",
			input:    "/https://evil.com",
			expected: "/https://evil.com",
		},
		{
			name:     "double slash in local path is allowed",
			input:    "/foo//bar",
			expected: "/foo//bar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := sanitizeReturnToPath(tt.input)

			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHandler_ServeHTTP(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	t.Run("home page", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Hello")
		assert.Contains(t, rec.Body.String(), `href="/login"`)
	})

	t.Run("unreadable session cookie", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "folio-test", Value: "garbage"})

		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("static file", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/style.css", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), ".comment")
	})

	t.Run("post without csrf token", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
