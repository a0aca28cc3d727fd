package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a purchasable package. BVValue prices one matched unit.
type Plan struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	BVValue   decimal.Decimal `json:"bv_value"`
	CreatedAt time.Time       `json:"created_at"`
}

// PlanSubscription binds a participant to a plan. BVValue is copied from the
// plan when the subscription is approved.
type PlanSubscription struct {
	ID            string          `json:"id"`
	ParticipantID string          `json:"participant_id"`
	PlanID        string          `json:"plan_id"`
	BVValue       decimal.Decimal `json:"bv_value"`
	Active        bool            `json:"active"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
