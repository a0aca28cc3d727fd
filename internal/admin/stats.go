package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	mware "github.com/sudo-init-do/binaryhub/internal/middleware"
)

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return mware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
