package models

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store runs fn inside one atomic transaction. fn's error rolls back every
// write made through tx.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of repository operations available inside a transaction.
// Lock* methods take a row lock held until the transaction ends.
type Tx interface {
	ParticipantRepository
	VolumeRepository
	ContributionRepository
	WalletRepository
	PlanRepository
	StatsRepository
}

type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, p *Participant) error
	GetParticipant(ctx context.Context, id string) (*Participant, error)
	GetParticipantByUsername(ctx context.Context, username string) (*Participant, error)
	LockParticipant(ctx context.Context, id string) (*Participant, error)
	// ListChildren returns participants sponsored by username, oldest first.
	ListChildren(ctx context.Context, sponsorUsername string) ([]*Participant, error)
	ListActiveParticipantIDs(ctx context.Context) ([]string, error)
	// ListParticipants returns newest first; limit <= 0 means no limit.
	ListParticipants(ctx context.Context, limit int) ([]*Participant, error)
	SetParticipantActive(ctx context.Context, id string, active bool) error
	AddParticipantIncome(ctx context.Context, id string, income decimal.Decimal, matches int64) error
	AddParticipantWithdrawal(ctx context.Context, id string, amount decimal.Decimal) error
}

type VolumeRepository interface {
	// LockVolumeAccount creates a zero account if none exists.
	LockVolumeAccount(ctx context.Context, participantID string) (*VolumeAccount, error)
	// GetVolumeAccount returns a zero account if none exists.
	GetVolumeAccount(ctx context.Context, participantID string) (*VolumeAccount, error)
	SaveVolumeAccount(ctx context.Context, a *VolumeAccount) error
}

type ContributionRepository interface {
	InsertContribution(ctx context.Context, r *ContributionRecord) error
	// ListUnmatchedContributions returns unmatched rows, oldest first.
	ListUnmatchedContributions(ctx context.Context, recipientID string) ([]*ContributionRecord, error)
	MarkContributionsMatched(ctx context.Context, ids []string) error
}

type WalletRepository interface {
	// LockWallet creates an empty wallet if none exists.
	LockWallet(ctx context.Context, participantID string) (*WalletAccount, error)
	// GetWallet returns an empty wallet if none exists.
	GetWallet(ctx context.Context, participantID string) (*WalletAccount, error)
	SaveWallet(ctx context.Context, w *WalletAccount) error
	InsertWalletTransaction(ctx context.Context, t *WalletTransaction) error
	// ListWalletTransactions returns newest first; limit <= 0 means no limit.
	ListWalletTransactions(ctx context.Context, participantID string, limit int) ([]*WalletTransaction, error)
}

type PlanRepository interface {
	CreatePlan(ctx context.Context, p *Plan) error
	GetPlan(ctx context.Context, id string) (*Plan, error)
	CreateSubscription(ctx context.Context, s *PlanSubscription) error
	// GetActiveSubscription returns the newest active subscription.
	GetActiveSubscription(ctx context.Context, participantID string) (*PlanSubscription, error)
}

type StatsRepository interface {
	Stats(ctx context.Context) (*Stats, error)
}
