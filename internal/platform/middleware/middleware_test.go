package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/monjedAmarna/chronicare-sub001/internal/platform/auth"
	"github.com/monjedAmarna/chronicare-sub001/internal/platform/metrics"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get("request_id").(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	mw := RequestID()
	h := mw(handler)
	err := h(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get("request_id").(string)
		if rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	mw := RequestID()
	h := mw(handler)
	h(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_ReplacesOversized(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	RequestID()(func(c echo.Context) error { return nil })(c)

	if got := rec.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Errorf("expected a generated uuid, got %q", got)
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	uid := uuid.New()
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: uid, Role: auth.RolePatient}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-123")

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := Logger(logger)
	h := mw(handler)
	err := h(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q", buf.String())
	}
	if entry["request_id"] != "req-123" || entry["user_id"] != uid.String() || entry["status"] != 200.0 {
		t.Errorf("unexpected log entry %v", entry)
	}
}

func TestLogger_LogsErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Logger(logger)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "alert not found")
	})
	if err := h(c); err == nil {
		t.Fatal("expected handler error to be returned")
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected response written with 404, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("expected warn level for 4xx, got %s", buf.String())
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	logger := zerolog.New(os.Stderr).With().Logger()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		panic("test panic")
	}

	before := testutil.ToFloat64(metrics.PanicsRecovered)
	mw := Recovery(logger)
	h := mw(handler)
	err := h(c)

	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
	if got := testutil.ToFloat64(metrics.PanicsRecovered); got != before+1 {
		t.Errorf("expected panic counter to increase, got %v -> %v", before, got)
	}
}

func TestRecovery_LogsCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	uid := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/alerts/x/read", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: uid, Role: auth.RolePatient}))
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "req-42")

	err := Recovery(logger)(func(c echo.Context) error {
		panic("nil alert")
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Internal == nil || !strings.Contains(httpErr.Internal.Error(), "nil alert") {
		t.Errorf("expected panic value as internal error, got %v", httpErr.Internal)
	}
	if httpErr.Message != "internal server error" {
		t.Errorf("panic value must not reach the client, got %v", httpErr.Message)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if entry["user_id"] != uid.String() || entry["request_id"] != "req-42" || entry["method"] != http.MethodPatch {
		t.Errorf("unexpected log entry %v", entry)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	logger := zerolog.New(os.Stderr).With().Logger()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := Recovery(logger)
	h := mw(handler)
	err := h(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMetrics_CountsByRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Metrics())
	e.GET("/api/v1/alerts/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/alerts/:id", "403")
	before := testutil.ToFloat64(counter)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/"+uuid.NewString(), nil)
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(counter); got != before+2 {
		t.Errorf("expected 2 more requests counted under the route template, got %v", got-before)
	}
}
