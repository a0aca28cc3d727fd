package wallet

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	mware "github.com/sudo-init-do/binaryhub/internal/middleware"
)

const (
	defaultTxLimit = 50
	maxTxLimit     = 500
)

// ParseLimit reads ?limit=, falling back to the default page size.
func ParseLimit(c echo.Context) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		return defaultTxLimit
	}
	return min(limit, maxTxLimit)
}

// Transactions returns the authenticated participant's ledger, newest first
func (h *Handler) Transactions(c echo.Context) error {
	uid, ok := mware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": "unauthorized or invalid user",
		})
	}

	txs, err := h.svc.WalletTransactions(c.Request().Context(), uid, ParseLimit(c))
	if err != nil {
		return mware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": txs})
}
