// Package testutil builds small participant trees for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/binaryhub/internal/models"
)

// Node describes one participant to seed. Leave Sponsor empty for a root.
type Node struct {
	Username string
	Sponsor  string
	Side     models.Side
	Active   bool
}

// Seed creates nodes in order and returns them keyed by username. Sponsors
// must appear before their children.
func Seed(t *testing.T, store models.Store, nodes ...Node) map[string]*models.Participant {
	t.Helper()
	out := make(map[string]*models.Participant, len(nodes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := store.WithTx(context.Background(), func(tx models.Tx) error {
		for i, n := range nodes {
			p := &models.Participant{
				ID:               uuid.New().String(),
				Username:         n.Username,
				Email:            n.Username + "@example.com",
				Sponsor:          n.Sponsor,
				Side:             n.Side,
				Active:           n.Active,
				TotalIncome:      decimal.Zero,
				TotalWithdrawals: decimal.Zero,
				CreatedAt:        base.Add(time.Duration(i) * time.Minute),
			}
			if err := tx.CreateParticipant(context.Background(), p); err != nil {
				return err
			}
			out[n.Username] = p
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Seed() error: %v", err)
	}
	return out
}

// SetCarry overwrites a participant's volume account. Lifetime counters are
// set equal to carry.
func SetCarry(t *testing.T, store models.Store, participantID string, left, right int64) {
	t.Helper()
	err := store.WithTx(context.Background(), func(tx models.Tx) error {
		a, err := tx.LockVolumeAccount(context.Background(), participantID)
		if err != nil {
			return err
		}
		a.LifetimeLeft, a.CarryLeft = left, left
		a.LifetimeRight, a.CarryRight = right, right
		return tx.SaveVolumeAccount(context.Background(), a)
	})
	if err != nil {
		t.Fatalf("SetCarry() error: %v", err)
	}
}

// Subscribe gives the participant an active plan worth bvValue per unit.
func Subscribe(t *testing.T, store models.Store, participantID string, bvValue int64) *models.PlanSubscription {
	t.Helper()
	var sub *models.PlanSubscription
	err := store.WithTx(context.Background(), func(tx models.Tx) error {
		plan := &models.Plan{
			ID:        uuid.New().String(),
			Name:      "plan-" + participantID[:8],
			Price:     decimal.NewFromInt(bvValue * 10),
			BVValue:   decimal.NewFromInt(bvValue),
			CreatedAt: time.Now(),
		}
		if err := tx.CreatePlan(context.Background(), plan); err != nil {
			return err
		}
		sub = &models.PlanSubscription{
			ID:            uuid.New().String(),
			ParticipantID: participantID,
			PlanID:        plan.ID,
			BVValue:       plan.BVValue,
			Active:        true,
			CreatedAt:     time.Now(),
		}
		return tx.CreateSubscription(context.Background(), sub)
	})
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	return sub
}

// Volume reads a participant's counters.
func Volume(t *testing.T, store models.Store, participantID string) *models.VolumeAccount {
	t.Helper()
	var a *models.VolumeAccount
	err := store.WithTx(context.Background(), func(tx models.Tx) error {
		var err error
		a, err = tx.GetVolumeAccount(context.Background(), participantID)
		return err
	})
	if err != nil {
		t.Fatalf("Volume() error: %v", err)
	}
	return a
}

// Wallet reads a participant's wallet.
func Wallet(t *testing.T, store models.Store, participantID string) *models.WalletAccount {
	t.Helper()
	var w *models.WalletAccount
	err := store.WithTx(context.Background(), func(tx models.Tx) error {
		var err error
		w, err = tx.GetWallet(context.Background(), participantID)
		return err
	})
	if err != nil {
		t.Fatalf("Wallet() error: %v", err)
	}
	return w
}

// Participant reloads a participant by id.
func Participant(t *testing.T, store models.Store, id string) *models.Participant {
	t.Helper()
	var p *models.Participant
	err := store.WithTx(context.Background(), func(tx models.Tx) error {
		var err error
		p, err = tx.GetParticipant(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("Participant() error: %v", err)
	}
	return p
}
