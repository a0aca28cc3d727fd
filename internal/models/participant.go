package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the position a participant occupies under its sponsor.
type Side string

const (
	SideNone  Side = ""
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Valid reports whether s is left or right.
func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// Opposite returns the other leg. SideNone has no opposite.
func (s Side) Opposite() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	}
	return SideNone
}

// ParseSide accepts "left", "right" and "" (no side).
func ParseSide(v string) (Side, error) {
	switch Side(v) {
	case SideLeft, SideRight, SideNone:
		return Side(v), nil
	}
	return SideNone, ErrInvalidSide
}

// Participant is a member of the sponsor tree. Sponsor is a weak reference by
// username; an empty Sponsor marks a root.
type Participant struct {
	ID               string          `json:"id"`
	Username         string          `json:"username"`
	Email            string          `json:"email,omitempty"`
	Sponsor          string          `json:"sponsor_username,omitempty"`
	Side             Side            `json:"side,omitempty"`
	Active           bool            `json:"active"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	TotalMatched     int64           `json:"total_matched"`
	CreatedAt        time.Time       `json:"created_at"`
}

// IsRoot reports whether the participant has no sponsor.
func (p *Participant) IsRoot() bool {
	return p.Sponsor == ""
}

// CheckPlacement enforces that side is set iff sponsor is set.
func (p *Participant) CheckPlacement() error {
	if p.Username == "" {
		return ErrUsernameRequired
	}
	if p.Sponsor == "" {
		if p.Side != SideNone {
			return ErrSponsorSide
		}
		return nil
	}
	if p.Side == SideNone {
		return ErrSponsorSide
	}
	if !p.Side.Valid() {
		return ErrInvalidSide
	}
	return nil
}

// Stats is the admin overview of the whole network.
type Stats struct {
	Participants       int             `json:"participants"`
	ActiveParticipants int             `json:"active_participants"`
	LifetimeVolume     int64           `json:"lifetime_volume"`
	CarryVolume        int64           `json:"carry_volume"`
	TotalEarned        decimal.Decimal `json:"total_earned"`
	TotalWithdrawn     decimal.Decimal `json:"total_withdrawn"`
	Transactions       int             `json:"transactions"`
}
