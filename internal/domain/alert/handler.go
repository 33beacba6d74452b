package alert

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/monjedAmarna/chronicare-sub001/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints and mark-read: any authenticated user, scoped by the service
	readGroup := api.Group("", auth.RequireAuthenticated())
	readGroup.GET("/alerts", h.ListAlerts)
	readGroup.GET("/alerts/unread-count", h.UnreadCount)
	readGroup.GET("/alerts/:id", h.GetAlert)
	readGroup.PATCH("/alerts/:id/read", h.MarkAlertAsRead)

	// Write endpoints: admin, doctor
	writeGroup := api.Group("", auth.RequireAuthenticated(), auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	writeGroup.POST("/alerts", h.CreateAlert)
	writeGroup.PUT("/alerts/:id", h.UpdateAlert)
	writeGroup.DELETE("/alerts/:id", h.DeleteAlert)
}

// HTTPError maps service errors onto status codes.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "alert not found")
	case errors.Is(err, ErrAccessDenied):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func requester(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}

func alertID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateAlert(c echo.Context) error {
	var cand Candidate
	if err := c.Bind(&cand); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.CreateAlert(c.Request().Context(), cand)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAlerts(c echo.Context) error {
	who, err := requester(c)
	if err != nil {
		return err
	}
	items, err := h.svc.GetAlerts(c.Request().Context(), who)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  items,
		"total": len(items),
	})
}

func (h *Handler) UnreadCount(c echo.Context) error {
	who, err := requester(c)
	if err != nil {
		return err
	}
	n, err := h.svc.UnreadCount(c.Request().Context(), who)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) GetAlert(c echo.Context) error {
	who, err := requester(c)
	if err != nil {
		return err
	}
	id, err := alertID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAlert(c.Request().Context(), id, who)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateAlert(c echo.Context) error {
	who, err := requester(c)
	if err != nil {
		return err
	}
	id, err := alertID(c)
	if err != nil {
		return err
	}
	var p Patch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateAlert(c.Request().Context(), id, p, who)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAlert(c echo.Context) error {
	who, err := requester(c)
	if err != nil {
		return err
	}
	id, err := alertID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAlert(c.Request().Context(), id, who); err != nil {
		return HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkAlertAsRead(c echo.Context) error {
	who, err := requester(c)
	if err != nil {
		return err
	}
	id, err := alertID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.MarkAlertAsRead(c.Request().Context(), id, who)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}
