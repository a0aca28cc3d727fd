package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the business reason of a wallet movement.
type TransactionType string

const (
	TxBVMatch      TransactionType = "bv_match"
	TxSponsorBonus TransactionType = "sponsor_bonus"
	TxWithdrawal   TransactionType = "withdrawal"
)

// WalletAccount keeps balance = totalEarned - totalWithdrawn >= 0.
type WalletAccount struct {
	ParticipantID  string          `json:"participant_id"`
	Balance        decimal.Decimal `json:"balance"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Check verifies the balance identity.
func (w *WalletAccount) Check() error {
	if w.Balance.IsNegative() || !w.Balance.Equal(w.TotalEarned.Sub(w.TotalWithdrawn)) {
		return ErrInvariant
	}
	return nil
}

// WalletTransaction is an immutable ledger row.
type WalletTransaction struct {
	ID            string          `json:"id"`
	ParticipantID string          `json:"participant_id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
