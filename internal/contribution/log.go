package contribution

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/binaryhub/internal/models"
)

// Log is the append-only audit trail of BV credits. The volume ledger, not
// this log, is authoritative for carry.
type Log struct {
	now func() time.Time
}

func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append records one unmatched contribution from source to recipient.
func (l *Log) Append(ctx context.Context, repo models.ContributionRepository, recipientID, sourceID string, amount int64) (*models.ContributionRecord, error) {
	if amount <= 0 {
		return nil, models.ErrNonPositiveAmount
	}
	r := &models.ContributionRecord{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		SourceID:    sourceID,
		Amount:      amount,
		CreatedAt:   l.now(),
	}
	if err := repo.InsertContribution(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// MarkMatched flips unmatched records oldest-first until their cumulative
// amount reaches amountToConsume. The last record touched is flipped whole
// even when only part of it was needed. Returns the number of records flipped.
func (l *Log) MarkMatched(ctx context.Context, repo models.ContributionRepository, recipientID string, amountToConsume int64) (int, error) {
	if amountToConsume <= 0 {
		return 0, nil
	}
	records, err := repo.ListUnmatchedContributions(ctx, recipientID)
	if err != nil {
		return 0, err
	}

	var ids []string
	var consumed int64
	for _, r := range records {
		if consumed >= amountToConsume {
			break
		}
		ids = append(ids, r.ID)
		consumed += r.Amount
	}
	if err := repo.MarkContributionsMatched(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}
