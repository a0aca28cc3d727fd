package volume

import (
	"context"
	"errors"
	"testing"

	"github.com/sudo-init-do/binaryhub/internal/models"
	"github.com/sudo-init-do/binaryhub/internal/repository"
)

func TestCreditConsumeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	l := NewLedger()

	err := store.WithTx(ctx, func(tx models.Tx) error {
		if err := l.Credit(ctx, tx, "p1", models.SideLeft, 120); err != nil {
			return err
		}
		if err := l.Credit(ctx, tx, "p1", models.SideRight, 80); err != nil {
			return err
		}
		s, err := l.Summary(ctx, tx, "p1")
		if err != nil {
			return err
		}
		if s.Matchable != 80 {
			t.Errorf("Matchable = %d, want 80", s.Matchable)
		}
		if err := l.ConsumeMatch(ctx, tx, "p1", 80); err != nil {
			return err
		}
		s, err = l.LockedSummary(ctx, tx, "p1")
		if err != nil {
			return err
		}
		if s.CarryLeft != 40 || s.CarryRight != 0 {
			t.Errorf("carry = %d/%d, want 40/0", s.CarryLeft, s.CarryRight)
		}
		if s.LifetimeLeft != 120 || s.LifetimeRight != 80 {
			t.Errorf("lifetime = %d/%d, want 120/80", s.LifetimeLeft, s.LifetimeRight)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx() error: %v", err)
	}
}

func TestCredit_Validation(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	l := NewLedger()

	tests := []struct {
		name   string
		side   models.Side
		amount int64
	}{
		{"zero amount", models.SideLeft, 0},
		{"negative amount", models.SideRight, -5},
		{"no side", models.SideNone, 50},
		{"unknown side", models.Side("middle"), 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.WithTx(ctx, func(tx models.Tx) error {
				return l.Credit(ctx, tx, "p1", tt.side, tt.amount)
			})
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("Credit() error = %v, want validation error", err)
			}
		})
	}
}

func TestConsumeMatch_ExceedsCarry(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	l := NewLedger()

	err := store.WithTx(ctx, func(tx models.Tx) error {
		if err := l.Credit(ctx, tx, "p1", models.SideLeft, 50); err != nil {
			return err
		}
		if err := l.Credit(ctx, tx, "p1", models.SideRight, 30); err != nil {
			return err
		}
		return l.ConsumeMatch(ctx, tx, "p1", 40)
	})
	if !errors.Is(err, models.ErrCarryExceeded) || !errors.Is(err, models.ErrInvariant) {
		t.Fatalf("ConsumeMatch() error = %v, want carry exceeded", err)
	}

	err = store.WithTx(ctx, func(tx models.Tx) error {
		return l.ConsumeMatch(ctx, tx, "p1", 0)
	})
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("ConsumeMatch(0) error = %v, want validation error", err)
	}
}

func TestSummary_MissingAccount(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	err := store.WithTx(ctx, func(tx models.Tx) error {
		s, err := NewLedger().Summary(ctx, tx, "nobody")
		if err != nil {
			return err
		}
		if s.LifetimeLeft != 0 || s.Matchable != 0 {
			t.Errorf("Summary() = %+v, want zeros", s)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx() error: %v", err)
	}
}
