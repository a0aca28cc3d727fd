package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/binaryhub/internal/metrics"
)

// Metrics counts requests by route pattern and status.
func Metrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		status := c.Response().Status
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
		}
		metrics.HttpRequestsTotal.WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).Inc()
		return err
	}
}
