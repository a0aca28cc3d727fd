package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/binaryhub/internal/models"
)

type stubService struct {
	balance   decimal.Decimal
	lastLimit int
	withdrawn decimal.Decimal
}

func (s *stubService) WalletBalance(_ context.Context, id string) (*models.WalletAccount, error) {
	if id == "ghost" {
		return nil, models.ErrParticipantNotFound
	}
	return &models.WalletAccount{ParticipantID: id, Balance: s.balance, TotalEarned: s.balance}, nil
}

func (s *stubService) WalletTransactions(_ context.Context, id string, limit int) ([]*models.WalletTransaction, error) {
	s.lastLimit = limit
	return []*models.WalletTransaction{{ID: "t1", ParticipantID: id, Type: models.TxBVMatch, Amount: s.balance}}, nil
}

func (s *stubService) Withdraw(_ context.Context, id string, amount decimal.Decimal) (*models.WalletTransaction, error) {
	if amount.GreaterThan(s.balance) {
		return nil, models.ErrInsufficientBalance
	}
	s.withdrawn = amount
	return &models.WalletTransaction{ID: "w1", ParticipantID: id, Amount: amount, BalanceAfter: s.balance.Sub(amount)}, nil
}

func serve(h echo.HandlerFunc, method, target, userID, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != "" {
		c.Set("user_id", userID)
	}
	_ = h(c)
	return rec
}

func TestHandler_Balance(t *testing.T) {
	h := NewHandler(&stubService{balance: decimal.NewFromInt(42)})

	rec := serve(h.Balance, http.MethodGet, "/wallet/balance", "p1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["balance"] != "42" {
		t.Errorf("balance = %v, want \"42\"", body["balance"])
	}

	if rec := serve(h.Balance, http.MethodGet, "/wallet/balance", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d, want 401", rec.Code)
	}
	if rec := serve(h.Balance, http.MethodGet, "/wallet/balance", "ghost", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown participant: status = %d, want 404", rec.Code)
	}
}

func TestHandler_Transactions_Limit(t *testing.T) {
	svc := &stubService{balance: decimal.NewFromInt(1)}
	h := NewHandler(svc)

	for target, want := range map[string]int{
		"/wallet/transactions":            defaultTxLimit,
		"/wallet/transactions?limit=5":    5,
		"/wallet/transactions?limit=-1":   defaultTxLimit,
		"/wallet/transactions?limit=9999": maxTxLimit,
	} {
		if rec := serve(h.Transactions, http.MethodGet, target, "p1", ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", target, rec.Code)
		}
		if svc.lastLimit != want {
			t.Errorf("%s: limit = %d, want %d", target, svc.lastLimit, want)
		}
	}
}

func TestHandler_Withdraw(t *testing.T) {
	svc := &stubService{balance: decimal.NewFromInt(10)}
	h := NewHandler(svc)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"ok", `{"amount":"4.5"}`, http.StatusOK},
		{"numeric amount", `{"amount":3}`, http.StatusOK},
		{"zero", `{"amount":"0"}`, http.StatusBadRequest},
		{"malformed", `{"amount":`, http.StatusBadRequest},
		{"insufficient", `{"amount":"11"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h.Withdraw, http.MethodPost, "/wallet/withdraw", "p1", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}
