package distributor

import (
	"context"
	"fmt"

	"github.com/sudo-init-do/binaryhub/internal/contribution"
	"github.com/sudo-init-do/binaryhub/internal/logger"
	"github.com/sudo-init-do/binaryhub/internal/models"
	"github.com/sudo-init-do/binaryhub/internal/tree"
	"github.com/sudo-init-do/binaryhub/internal/volume"
)

// DefaultContribution is the BV every ancestor receives per qualifying event.
const DefaultContribution int64 = 50

// Distributor propagates a fixed contribution up the full sponsor chain.
type Distributor struct {
	tree         *tree.Tree
	ledger       *volume.Ledger
	log          *contribution.Log
	contribution int64
	logger       *logger.Logger
}

func New(t *tree.Tree, ledger *volume.Ledger, log *contribution.Log, amount int64, lg *logger.Logger) *Distributor {
	if amount <= 0 {
		amount = DefaultContribution
	}
	if lg == nil {
		lg = logger.NewNop()
	}
	return &Distributor{tree: t, ledger: ledger, log: log, contribution: amount, logger: lg}
}

// Distribution describes one completed upline walk.
type Distribution struct {
	Source    *models.Participant
	Side      models.Side
	Amount    int64
	Ancestors []*models.Participant
}

// Distribute credits every ancestor of p on p's own side. The side is fixed
// for the whole walk, whatever side each ancestor holds under its own sponsor.
// Exactly-once delivery is the caller's job.
func (d *Distributor) Distribute(ctx context.Context, tx models.Tx, p *models.Participant) (*Distribution, error) {
	if p.IsRoot() {
		return &Distribution{Source: p, Amount: d.contribution}, nil
	}
	if !p.Side.Valid() {
		return nil, fmt.Errorf("distribute from %q: %w", p.Username, models.ErrInvalidSide)
	}

	ancestors, err := d.tree.AncestorsOf(ctx, tx, p)
	if err != nil {
		return nil, err
	}
	for _, a := range ancestors {
		if err := d.ledger.Credit(ctx, tx, a.ID, p.Side, d.contribution); err != nil {
			return nil, fmt.Errorf("credit %q: %w", a.Username, err)
		}
		if _, err := d.log.Append(ctx, tx, a.ID, p.ID, d.contribution); err != nil {
			return nil, fmt.Errorf("log contribution to %q: %w", a.Username, err)
		}
	}
	if len(ancestors) == d.tree.MaxDepth() {
		d.logger.Warn("upline walk reached depth bound", "source", p.Username, "depth", len(ancestors))
	}
	d.logger.Debug("volume distributed", "source", p.Username, "side", p.Side, "ancestors", len(ancestors))

	return &Distribution{Source: p, Side: p.Side, Amount: d.contribution, Ancestors: ancestors}, nil
}
