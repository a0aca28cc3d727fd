package wallet

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	mware "github.com/sudo-init-do/binaryhub/internal/middleware"
	"github.com/sudo-init-do/binaryhub/internal/models"
)

// Service is the part of the compensation service the wallet routes use.
type Service interface {
	WalletBalance(ctx context.Context, participantID string) (*models.WalletAccount, error)
	WalletTransactions(ctx context.Context, participantID string, limit int) ([]*models.WalletTransaction, error)
	Withdraw(ctx context.Context, participantID string, amount decimal.Decimal) (*models.WalletTransaction, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Balance returns the authenticated participant's wallet balance
func (h *Handler) Balance(c echo.Context) error {
	uid, ok := mware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	w, err := h.svc.WalletBalance(c.Request().Context(), uid)
	if err != nil {
		return mware.RespondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user_id":         uid,
		"balance":         w.Balance,
		"total_earned":    w.TotalEarned,
		"total_withdrawn": w.TotalWithdrawn,
	})
}
