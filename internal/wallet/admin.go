package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"

	mware "github.com/sudo-init-do/binaryhub/internal/middleware"
)

// AdminUserTransactions returns the ledger of any participant (admin view)
func (h *Handler) AdminUserTransactions(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user ID is required"})
	}

	txs, err := h.svc.WalletTransactions(c.Request().Context(), userID, ParseLimit(c))
	if err != nil {
		return mware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": txs})
}
