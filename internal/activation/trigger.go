package activation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/binaryhub/internal/distributor"
	"github.com/sudo-init-do/binaryhub/internal/logger"
	"github.com/sudo-init-do/binaryhub/internal/matching"
	"github.com/sudo-init-do/binaryhub/internal/models"
	"github.com/sudo-init-do/binaryhub/internal/tree"
	"github.com/sudo-init-do/binaryhub/internal/wallet"
)

// Trigger runs the activation transition: flag the account active, push BV up
// the sponsor chain once and settle every ancestor that now has matchable carry.
type Trigger struct {
	tree         *tree.Tree
	distributor  *distributor.Distributor
	engine       *matching.Engine
	wallet       *wallet.Wallet
	sponsorBonus decimal.Decimal
	logger       *logger.Logger
}

func New(t *tree.Tree, d *distributor.Distributor, e *matching.Engine, w *wallet.Wallet, sponsorBonus decimal.Decimal, lg *logger.Logger) *Trigger {
	if lg == nil {
		lg = logger.NewNop()
	}
	return &Trigger{tree: t, distributor: d, engine: e, wallet: w, sponsorBonus: sponsorBonus, logger: lg}
}

type Result struct {
	Participant  *models.Participant       `json:"participant"`
	Activated    bool                      `json:"activated"`
	Distribution *distributor.Distribution `json:"-"`
	SponsorBonus *models.WalletTransaction `json:"sponsor_bonus,omitempty"`
	Matches      []*matching.Result        `json:"matches,omitempty"`
}

// Activate must run inside the event's transaction. The participant row lock
// makes the inactive-to-active check and the distribution one step, so a
// participant distributes at most once.
func (t *Trigger) Activate(ctx context.Context, tx models.Tx, participantID string) (*Result, error) {
	p, err := tx.LockParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if p.Active {
		t.logger.Debug("participant already active", "participant", p.Username)
		return &Result{Participant: p}, nil
	}

	if err := tx.SetParticipantActive(ctx, p.ID, true); err != nil {
		return nil, err
	}
	p.Active = true
	res := &Result{Participant: p, Activated: true}

	res.Distribution, err = t.distributor.Distribute(ctx, tx, p)
	if err != nil {
		return nil, fmt.Errorf("distribute: %w", err)
	}

	if res.SponsorBonus, err = t.paySponsorBonus(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("sponsor bonus: %w", err)
	}

	for _, a := range res.Distribution.Ancestors {
		m, err := t.engine.ProcessMatch(ctx, tx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("match %q: %w", a.Username, err)
		}
		if m.Matched {
			res.Matches = append(res.Matches, m)
		}
	}
	return res, nil
}

func (t *Trigger) paySponsorBonus(ctx context.Context, tx models.Tx, p *models.Participant) (*models.WalletTransaction, error) {
	if p.IsRoot() || !t.sponsorBonus.IsPositive() {
		return nil, nil
	}
	sponsor, err := t.tree.Resolve(ctx, tx, p.Sponsor)
	if models.IsNotFound(err) {
		t.logger.Warn("sponsor missing, bonus skipped", "participant", p.Username, "sponsor", p.Sponsor)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := tx.AddParticipantIncome(ctx, sponsor.ID, t.sponsorBonus, 0); err != nil {
		return nil, err
	}
	return t.wallet.Credit(ctx, tx, wallet.Entry{
		ParticipantID: sponsor.ID,
		Amount:        t.sponsorBonus,
		Type:          models.TxSponsorBonus,
		ReferenceID:   uuid.New().String(),
		Metadata:      map[string]any{"source_participant_id": p.ID, "source_username": p.Username},
	})
}
