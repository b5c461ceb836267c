package testutils

import (
	"log/slog"

	"github.com/labstack/echo/v4"
)

// requestLogger logs each request the fake appliance serves at debug level,
// tagged with the id set by the RequestID middleware. Run tests with
// LOG_LEVEL=debug to see the traffic.
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := c.Response().Header().Get(echo.HeaderXRequestID)
		err := next(c)
		slog.Debug("Appliance request",
			"request_id", reqID,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"error", err,
		)
		return err
	}
}
