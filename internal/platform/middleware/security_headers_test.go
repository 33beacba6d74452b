package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func runSecurityHeaders(t *testing.T, cfg SecurityConfig, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	rec := httptest.NewRecorder()
	return rec, SecurityHeaders(cfg)(handler)(e.NewContext(req, rec))
}

func TestSecurityHeaders_SetsAllHeaders(t *testing.T) {
	rec, err := runSecurityHeaders(t, DefaultSecurityConfig(), func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":           "no-referrer",
		"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Cache-Control":             "no-store",
	}

	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("header %s: expected %q, got %q", header, want, got)
		}
	}
}

func TestSecurityHeaders_HSTSMaxAge(t *testing.T) {
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	rec, _ := runSecurityHeaders(t, SecurityConfig{HSTSMaxAge: time.Hour}, ok)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=3600; includeSubDomains" {
		t.Errorf("unexpected HSTS header %q", got)
	}

	rec, _ = runSecurityHeaders(t, SecurityConfig{}, ok)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("expected no HSTS header when disabled, got %q", got)
	}
	if rec.Header().Get("Permissions-Policy") == "" {
		t.Error("expected the remaining headers without HSTS")
	}
}

func TestSecurityHeaders_ErrorResponses(t *testing.T) {
	rec, err := runSecurityHeaders(t, DefaultSecurityConfig(), func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	})
	if err == nil {
		t.Fatal("expected handler error to pass through")
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected headers to be set before the handler runs")
	}
}
