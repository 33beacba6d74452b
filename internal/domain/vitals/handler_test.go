package vitals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monjedAmarna/chronicare-sub001/internal/domain/alert"
	"github.com/monjedAmarna/chronicare-sub001/internal/platform/auth"
)

func submit(t *testing.T, h *Handler, body string, as auth.Identity) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/readings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(req.Context(), as))
	rec := httptest.NewRecorder()
	return rec, h.SubmitReading(e.NewContext(req, rec))
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	return he.Code
}

func TestHandler_SubmitReading_PatientOwnReading(t *testing.T) {
	ing, _, pub, patient := newPipeline(t)
	h := NewHandler(ing)

	rec, err := submit(t, h, `{"type":"glucose","value":250}`, auth.Identity{UserID: patient, Role: auth.RolePatient})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Len(t, pub.events, 1)
}

func TestHandler_SubmitReading_PatientForSomeoneElse(t *testing.T) {
	ing, _, _, patient := newPipeline(t)
	h := NewHandler(ing)

	body := `{"type":"glucose","value":250,"user_id":"` + patient.String() + `"}`
	_, err := submit(t, h, body, auth.Identity{UserID: uuid.New(), Role: auth.RolePatient})
	assert.Equal(t, http.StatusForbidden, httpCode(t, err))
}

func TestHandler_SubmitReading_DoctorForPatient(t *testing.T) {
	ing, store, _, patient := newPipeline(t)
	h := NewHandler(ing)

	body := `{"type":"blood_pressure","systolic":150,"diastolic":95,"user_id":"` + patient.String() + `"}`
	rec, err := submit(t, h, body, auth.Identity{UserID: uuid.New(), Role: auth.RoleDoctor})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.items, 1)
	assert.Equal(t, patient, store.items[0].UserID)
}

func TestHandler_SubmitReading_Invalid(t *testing.T) {
	ing := NewIngestor(&flakyCreator{}, zerolog.Nop())
	h := NewHandler(ing)
	me := auth.Identity{UserID: uuid.New(), Role: auth.RolePatient}

	for _, body := range []string{
		`{"type":"heart_rate","value":80}`,
		`{"type":"glucose"}`,
		`{"type":"blood_pressure","systolic":120}`,
		`{not json`,
	} {
		_, err := submit(t, h, body, me)
		assert.Equal(t, http.StatusBadRequest, httpCode(t, err), body)
	}
}

// cancellingCreator creates the first alert, then ends the request.
type cancellingCreator struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingCreator) CreateAlert(_ context.Context, cand alert.Candidate) (*alert.Alert, error) {
	c.calls++
	c.cancel()
	return &alert.Alert{ID: uuid.New(), UserID: cand.UserID, Severity: cand.Severity}, nil
}

func submitWithContext(t *testing.T, h *Handler, ctx context.Context, body string, as auth.Identity) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/readings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(ctx, as))
	rec := httptest.NewRecorder()
	return rec, h.SubmitReading(e.NewContext(req, rec))
}

func TestHandler_SubmitReading_CancelledMidBatchReturnsCreated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	creator := &cancellingCreator{cancel: cancel}
	h := NewHandler(NewIngestor(creator, zerolog.Nop()))
	me := auth.Identity{UserID: uuid.New(), Role: auth.RolePatient}

	// 150/50 raises a high and a low candidate; only the first is created.
	rec, err := submitWithContext(t, h, ctx, `{"type":"blood_pressure","systolic":150,"diastolic":50}`, me)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, creator.calls)

	var resp struct {
		Total   int  `json:"total"`
		Partial bool `json:"partial"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.True(t, resp.Partial)
}

func TestHandler_SubmitReading_CancelledBeforeAnyAlert(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	creator := &flakyCreator{}
	h := NewHandler(NewIngestor(creator, zerolog.Nop()))

	_, err := submitWithContext(t, h, ctx, `{"type":"glucose","value":300}`,
		auth.Identity{UserID: uuid.New(), Role: auth.RolePatient})
	assert.Equal(t, http.StatusServiceUnavailable, httpCode(t, err))
	assert.Zero(t, creator.calls)
}
