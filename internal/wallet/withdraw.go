package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	mware "github.com/sudo-init-do/binaryhub/internal/middleware"
)

// Withdraw handles immediate withdrawals (no admin approval)
func (h *Handler) Withdraw(c echo.Context) error {
	uid, ok := mware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": "unauthorized or invalid user",
		})
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "invalid request body",
		})
	}
	if !req.Amount.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "amount must be greater than zero",
		})
	}

	wt, err := h.svc.Withdraw(c.Request().Context(), uid, req.Amount)
	if err != nil {
		return mware.RespondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"withdrawal_id": wt.ID,
		"amount":        wt.Amount,
		"balance":       wt.BalanceAfter,
		"status":        "completed",
	})
}
