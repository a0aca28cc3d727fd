package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/binaryhub/internal/compensation"
	mware "github.com/sudo-init-do/binaryhub/internal/middleware"
	"github.com/sudo-init-do/binaryhub/internal/wallet"
)

type Handler struct {
	svc *compensation.Service
}

func NewHandler(svc *compensation.Service) *Handler {
	return &Handler{svc: svc}
}

// GET /admin/participants
func (h *Handler) ListParticipants(c echo.Context) error {
	ps, err := h.svc.ListParticipants(c.Request().Context(), wallet.ParseLimit(c))
	if err != nil {
		return mware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"participants": ps})
}

// POST /admin/participants
func (h *Handler) RegisterParticipant(c echo.Context) error {
	var req compensation.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	p, err := h.svc.RegisterParticipant(c.Request().Context(), req)
	if err != nil {
		return mware.RespondError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// POST /admin/participants/:id/activate
func (h *Handler) ActivateParticipant(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "participant id required"})
	}
	res, err := h.svc.ActivateAccount(c.Request().Context(), id)
	if err != nil {
		return mware.RespondError(c, err)
	}
	msg := "participant activated"
	if !res.Activated {
		msg = "participant already active"
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg, "result": res})
}

// POST /admin/participants/:id/process-matches
func (h *Handler) ProcessMatches(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "participant id required"})
	}
	res, err := h.svc.ForceProcessMatches(c.Request().Context(), id)
	if err != nil {
		return mware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GET /admin/participants/:id/summary
func (h *Handler) Summary(c echo.Context) error {
	sum, err := h.svc.GetSummary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// GET /admin/participants/:id/tree
func (h *Handler) Tree(c echo.Context) error {
	tree, err := h.svc.GetReferralTreeBV(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, tree)
}
