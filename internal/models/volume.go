package models

import "time"

// VolumeAccount holds a participant's BV counters. Lifetime counters never
// decrease; carry counters decrease only when matched.
type VolumeAccount struct {
	ParticipantID string    `json:"participant_id"`
	LifetimeLeft  int64     `json:"lifetime_left"`
	LifetimeRight int64     `json:"lifetime_right"`
	CarryLeft     int64     `json:"carry_left"`
	CarryRight    int64     `json:"carry_right"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Matchable is the volume that can currently be paired across both legs.
func (a *VolumeAccount) Matchable() int64 {
	return min(a.CarryLeft, a.CarryRight)
}

// Check verifies lifetime >= carry >= 0 on both legs.
func (a *VolumeAccount) Check() error {
	if a.CarryLeft < 0 || a.CarryRight < 0 ||
		a.LifetimeLeft < a.CarryLeft || a.LifetimeRight < a.CarryRight {
		return ErrInvariant
	}
	return nil
}

// VolumeSummary is the BV snapshot exposed to dashboards.
type VolumeSummary struct {
	ParticipantID string `json:"participant_id"`
	LifetimeLeft  int64  `json:"lifetime_left"`
	LifetimeRight int64  `json:"lifetime_right"`
	CarryLeft     int64  `json:"carry_left"`
	CarryRight    int64  `json:"carry_right"`
	Matchable     int64  `json:"matchable"`
}

// ContributionRecord is one audit row per BV credit.
type ContributionRecord struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	SourceID    string    `json:"source_participant_id"`
	Amount      int64     `json:"amount"`
	Matched     bool      `json:"matched"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubtreeBV aggregates one leg of a participant's referral tree.
type SubtreeBV struct {
	Members        int   `json:"members"`
	ActiveMembers  int   `json:"active_members"`
	LifetimeVolume int64 `json:"lifetime_volume"`
	CarryVolume    int64 `json:"carry_volume"`
}

// ReferralTreeBV is the left/right aggregate view of a participant's downline.
type ReferralTreeBV struct {
	ParticipantID string    `json:"participant_id"`
	Left          SubtreeBV `json:"left"`
	Right         SubtreeBV `json:"right"`
}
