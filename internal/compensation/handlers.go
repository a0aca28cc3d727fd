package compensation

import (
	"net/http"

	"github.com/labstack/echo/v4"

	mware "github.com/sudo-init-do/binaryhub/internal/middleware"
)

// Handler serves the participant BV dashboard.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GET /bv/summary
func (h *Handler) Summary(c echo.Context) error {
	uid, ok := mware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sum, err := h.svc.GetSummary(c.Request().Context(), uid)
	if err != nil {
		return mware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// GET /bv/tree
func (h *Handler) Tree(c echo.Context) error {
	uid, ok := mware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	tree, err := h.svc.GetReferralTreeBV(c.Request().Context(), uid)
	if err != nil {
		return mware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, tree)
}
