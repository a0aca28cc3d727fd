package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/binaryhub/internal/compensation"
	mware "github.com/sudo-init-do/binaryhub/internal/middleware"
)

// POST /admin/payments/approve
func (h *Handler) ApprovePayment(c echo.Context) error {
	var ev compensation.PaymentApproved
	if err := c.Bind(&ev); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.svc.ApprovePayment(c.Request().Context(), ev)
	if err != nil {
		return mware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "payment approved", "result": res})
}

// POST /admin/plan-requests/approve
func (h *Handler) ApprovePlanRequest(c echo.Context) error {
	var ev compensation.PlanRequestApproved
	if err := c.Bind(&ev); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.svc.ApprovePlanRequest(c.Request().Context(), ev)
	if err != nil {
		return mware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "plan request approved", "result": res})
}

type CreatePlanRequest struct {
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	BVValue decimal.Decimal `json:"bv_value"`
}

// POST /admin/plans
func (h *Handler) CreatePlan(c echo.Context) error {
	var req CreatePlanRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	plan, err := h.svc.CreatePlan(c.Request().Context(), req.Name, req.Price, req.BVValue)
	if err != nil {
		return mware.RespondError(c, err)
	}
	return c.JSON(http.StatusCreated, plan)
}
