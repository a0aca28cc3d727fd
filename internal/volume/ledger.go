package volume

import (
	"context"
	"fmt"

	"github.com/sudo-init-do/binaryhub/internal/models"
)

// Ledger maintains per-participant BV counters. Every method runs inside the
// caller's transaction and locks the account row before changing it.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Credit adds amount to both the lifetime and carry counters of side.
func (l *Ledger) Credit(ctx context.Context, repo models.VolumeRepository, participantID string, side models.Side, amount int64) error {
	if participantID == "" {
		return fmt.Errorf("%w: participant id is required", models.ErrValidation)
	}
	if !side.Valid() {
		return models.ErrInvalidSide
	}
	if amount <= 0 {
		return models.ErrNonPositiveAmount
	}

	a, err := repo.LockVolumeAccount(ctx, participantID)
	if err != nil {
		return err
	}
	switch side {
	case models.SideLeft:
		a.LifetimeLeft += amount
		a.CarryLeft += amount
	case models.SideRight:
		a.LifetimeRight += amount
		a.CarryRight += amount
	}
	return repo.SaveVolumeAccount(ctx, a)
}

// ConsumeMatch removes matchedAmount from both carry counters. Lifetime
// counters are untouched.
func (l *Ledger) ConsumeMatch(ctx context.Context, repo models.VolumeRepository, participantID string, matchedAmount int64) error {
	if matchedAmount <= 0 {
		return models.ErrNonPositiveAmount
	}
	a, err := repo.LockVolumeAccount(ctx, participantID)
	if err != nil {
		return err
	}
	if matchedAmount > a.Matchable() {
		return fmt.Errorf("%w: want %d, matchable %d", models.ErrCarryExceeded, matchedAmount, a.Matchable())
	}
	a.CarryLeft -= matchedAmount
	a.CarryRight -= matchedAmount
	return repo.SaveVolumeAccount(ctx, a)
}

// Summary reads the counters without locking.
func (l *Ledger) Summary(ctx context.Context, repo models.VolumeRepository, participantID string) (*models.VolumeSummary, error) {
	a, err := repo.GetVolumeAccount(ctx, participantID)
	if err != nil {
		return nil, err
	}
	return summarize(a), nil
}

// LockedSummary reads the counters and holds the row lock until the
// transaction ends, so the caller can act on the snapshot.
func (l *Ledger) LockedSummary(ctx context.Context, repo models.VolumeRepository, participantID string) (*models.VolumeSummary, error) {
	a, err := repo.LockVolumeAccount(ctx, participantID)
	if err != nil {
		return nil, err
	}
	return summarize(a), nil
}

func summarize(a *models.VolumeAccount) *models.VolumeSummary {
	return &models.VolumeSummary{
		ParticipantID: a.ParticipantID,
		LifetimeLeft:  a.LifetimeLeft,
		LifetimeRight: a.LifetimeRight,
		CarryLeft:     a.CarryLeft,
		CarryRight:    a.CarryRight,
		Matchable:     a.Matchable(),
	}
}
