package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/monjedAmarna/chronicare-sub001/internal/platform/auth"
	"github.com/monjedAmarna/chronicare-sub001/internal/platform/metrics"
)

// Recovery turns a handler panic into a 500. The panic value stays on the
// error as its internal cause; clients only see the generic message.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				var stack [4096]byte
				n := runtime.Stack(stack[:], false)
				metrics.PanicsRecovered.Inc()

				evt := logger.Error().
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(stack[:n]))
				if rid, ok := c.Get("request_id").(string); ok {
					evt = evt.Str("request_id", rid)
				}
				if id, ok := auth.IdentityFromContext(c.Request().Context()); ok {
					evt = evt.Str("user_id", id.UserID.String())
				}
				evt.Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error").
					SetInternal(fmt.Errorf("panic: %v", r))
			}()
			return next(c)
		}
	}
}
