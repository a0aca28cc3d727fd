package testutil

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/binaryhub/internal/models"
)

// LockRecorder wraps a Tx and records, per participant id, the order in which
// row-locking calls first touch each table.
type LockRecorder struct {
	models.Tx
	Order map[string][]string
}

func NewLockRecorder(tx models.Tx) *LockRecorder {
	return &LockRecorder{Tx: tx, Order: map[string][]string{}}
}

func (r *LockRecorder) touch(id, table string) {
	if !slices.Contains(r.Order[id], table) {
		r.Order[id] = append(r.Order[id], table)
	}
}

// Before reports whether table a was locked before table b for id.
func (r *LockRecorder) Before(id, a, b string) bool {
	ia, ib := slices.Index(r.Order[id], a), slices.Index(r.Order[id], b)
	return ia >= 0 && ib >= 0 && ia < ib
}

func (r *LockRecorder) LockParticipant(ctx context.Context, id string) (*models.Participant, error) {
	r.touch(id, "participants")
	return r.Tx.LockParticipant(ctx, id)
}

func (r *LockRecorder) AddParticipantIncome(ctx context.Context, id string, income decimal.Decimal, matches int64) error {
	r.touch(id, "participants")
	return r.Tx.AddParticipantIncome(ctx, id, income, matches)
}

func (r *LockRecorder) AddParticipantWithdrawal(ctx context.Context, id string, amount decimal.Decimal) error {
	r.touch(id, "participants")
	return r.Tx.AddParticipantWithdrawal(ctx, id, amount)
}

func (r *LockRecorder) LockVolumeAccount(ctx context.Context, id string) (*models.VolumeAccount, error) {
	r.touch(id, "volume_accounts")
	return r.Tx.LockVolumeAccount(ctx, id)
}

func (r *LockRecorder) LockWallet(ctx context.Context, id string) (*models.WalletAccount, error) {
	r.touch(id, "wallets")
	return r.Tx.LockWallet(ctx, id)
}
