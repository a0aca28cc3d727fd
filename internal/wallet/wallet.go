package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/binaryhub/internal/models"
)

// Wallet applies balance movements inside the caller's transaction and writes
// one immutable transaction row per movement.
type Wallet struct {
	now func() time.Time
}

func New() *Wallet {
	return &Wallet{now: time.Now}
}

// Entry describes one wallet movement.
type Entry struct {
	ParticipantID string
	Amount        decimal.Decimal
	Type          models.TransactionType
	ReferenceID   string
	Metadata      map[string]any
}

// Credit adds to balance and totalEarned.
func (w *Wallet) Credit(ctx context.Context, repo models.WalletRepository, e Entry) (*models.WalletTransaction, error) {
	if !e.Amount.IsPositive() {
		return nil, models.ErrNonPositiveAmount
	}
	acct, err := repo.LockWallet(ctx, e.ParticipantID)
	if err != nil {
		return nil, err
	}
	before := acct.Balance
	acct.Balance = acct.Balance.Add(e.Amount)
	acct.TotalEarned = acct.TotalEarned.Add(e.Amount)
	return w.record(ctx, repo, acct, before, e)
}

// Debit subtracts from balance and adds to totalWithdrawn. The balance never
// goes below zero.
func (w *Wallet) Debit(ctx context.Context, repo models.WalletRepository, e Entry) (*models.WalletTransaction, error) {
	if !e.Amount.IsPositive() {
		return nil, models.ErrNonPositiveAmount
	}
	acct, err := repo.LockWallet(ctx, e.ParticipantID)
	if err != nil {
		return nil, err
	}
	if e.Amount.GreaterThan(acct.Balance) {
		return nil, fmt.Errorf("%w: requested %s, available %s", models.ErrInsufficientBalance, e.Amount, acct.Balance)
	}
	before := acct.Balance
	acct.Balance = acct.Balance.Sub(e.Amount)
	acct.TotalWithdrawn = acct.TotalWithdrawn.Add(e.Amount)
	return w.record(ctx, repo, acct, before, e)
}

func (w *Wallet) record(ctx context.Context, repo models.WalletRepository, acct *models.WalletAccount, before decimal.Decimal, e Entry) (*models.WalletTransaction, error) {
	if err := repo.SaveWallet(ctx, acct); err != nil {
		return nil, err
	}
	wt := &models.WalletTransaction{
		ID:            uuid.New().String(),
		ParticipantID: e.ParticipantID,
		Type:          e.Type,
		Amount:        e.Amount,
		BalanceBefore: before,
		BalanceAfter:  acct.Balance,
		ReferenceID:   e.ReferenceID,
		Metadata:      e.Metadata,
		CreatedAt:     w.now(),
	}
	if err := repo.InsertWalletTransaction(ctx, wt); err != nil {
		return nil, err
	}
	return wt, nil
}

// Withdraw debits the wallet and adds to the participant's lifetime
// withdrawals.
func (w *Wallet) Withdraw(ctx context.Context, tx models.Tx, participantID string, amount decimal.Decimal) (*models.WalletTransaction, error) {
	if _, err := tx.LockParticipant(ctx, participantID); err != nil {
		return nil, err
	}
	wt, err := w.Debit(ctx, tx, Entry{
		ParticipantID: participantID,
		Amount:        amount,
		Type:          models.TxWithdrawal,
		ReferenceID:   uuid.New().String(),
	})
	if err != nil {
		return nil, err
	}
	if err := tx.AddParticipantWithdrawal(ctx, participantID, amount); err != nil {
		return nil, err
	}
	return wt, nil
}
