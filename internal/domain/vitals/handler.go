package vitals

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/monjedAmarna/chronicare-sub001/internal/platform/auth"
)

type Handler struct {
	ingestor *Ingestor
}

func NewHandler(ingestor *Ingestor) *Handler {
	return &Handler{ingestor: ingestor}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireAuthenticated())
	g.POST("/readings", h.SubmitReading)
}

// SubmitReading evaluates a reading. Patients submit for themselves; admins
// and doctors name the patient with user_id.
//
// Alerts are created one at a time. If the request ends part way through, the
// alerts already created are returned with 200 and "partial": true, so a
// client does not resubmit and duplicate them. 503 means nothing was created.
func (h *Handler) SubmitReading(c echo.Context) error {
	who, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var r Reading
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := r.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	target := who.UserID
	if r.UserID != uuid.Nil && r.UserID != who.UserID {
		if who.Role != auth.RoleAdmin && who.Role != auth.RoleDoctor {
			return echo.NewHTTPError(http.StatusForbidden, "patients may only submit their own readings")
		}
		target = r.UserID
	}

	created, err := h.ingestor.ProcessReading(c.Request().Context(), target, r)
	partial := false
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
		}
		if len(created) == 0 {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "request cancelled").SetInternal(err)
		}
		partial = true
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":    created,
		"total":   len(created),
		"partial": partial,
	})
}
