package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/binaryhub/internal/config"
	"github.com/sudo-init-do/binaryhub/internal/contribution"
	"github.com/sudo-init-do/binaryhub/internal/logger"
	"github.com/sudo-init-do/binaryhub/internal/models"
	"github.com/sudo-init-do/binaryhub/internal/volume"
	"github.com/sudo-init-do/binaryhub/internal/wallet"
)

// DefaultBaseUnit is the BV priced by one bvValue.
const DefaultBaseUnit int64 = 50

var hundred = decimal.NewFromInt(100)

type Config struct {
	BaseUnit   int64
	Remainder  string // config.RemainderConsumeAll or config.RemainderRetain
	TDSPercent decimal.Decimal
	Workers    int
}

// Engine converts opposing-side carry into a matching bonus.
type Engine struct {
	cfg    Config
	ledger *volume.Ledger
	log    *contribution.Log
	wallet *wallet.Wallet
	logger *logger.Logger
}

func New(cfg Config, ledger *volume.Ledger, log *contribution.Log, w *wallet.Wallet, lg *logger.Logger) *Engine {
	if cfg.BaseUnit <= 0 {
		cfg.BaseUnit = DefaultBaseUnit
	}
	if cfg.Remainder == "" {
		cfg.Remainder = config.RemainderConsumeAll
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if lg == nil {
		lg = logger.NewNop()
	}
	return &Engine{cfg: cfg, ledger: ledger, log: log, wallet: w, logger: lg}
}

// Result describes one ProcessMatch call.
type Result struct {
	ParticipantID string `json:"participant_id"`
	Matched       bool   `json:"matched"`
	// Matchable is min(carryLeft, carryRight) before the match.
	Matchable int64 `json:"matchable"`
	Consumed  int64 `json:"consumed"`
	Units     int64 `json:"units"`
	// Remainder is the sub-unit volume that earned nothing. It is consumed
	// under consume_all and left in carry under retain_remainder.
	Remainder   int64                     `json:"remainder"`
	BVValue     decimal.Decimal           `json:"bv_value"`
	Gross       decimal.Decimal           `json:"gross"`
	TDS         decimal.Decimal           `json:"tds"`
	Net         decimal.Decimal           `json:"net"`
	Transaction *models.WalletTransaction `json:"transaction,omitempty"`
}

// ProcessMatch consumes the participant's matchable carry and pays
// floor(matchable/BaseUnit) * bvValue. The account row stays locked from the
// read until commit, so concurrent calls never consume the same carry twice.
// Rows are locked volume, participant, wallet; withdrawals lock participant
// before wallet too.
func (e *Engine) ProcessMatch(ctx context.Context, tx models.Tx, participantID string) (*Result, error) {
	if _, err := tx.GetParticipant(ctx, participantID); err != nil {
		return nil, err
	}
	sum, err := e.ledger.LockedSummary(ctx, tx, participantID)
	if err != nil {
		return nil, err
	}

	res := &Result{ParticipantID: participantID, Matchable: sum.Matchable}
	if sum.Matchable <= 0 {
		return res, nil
	}

	units := sum.Matchable / e.cfg.BaseUnit
	consume := sum.Matchable
	if e.cfg.Remainder == config.RemainderRetain {
		consume = units * e.cfg.BaseUnit
	}
	if consume == 0 {
		return res, nil
	}

	bvValue := decimal.Zero
	var subscriptionID string
	sub, err := tx.GetActiveSubscription(ctx, participantID)
	switch {
	case err == nil:
		bvValue, subscriptionID = sub.BVValue, sub.ID
	case models.IsNotFound(err):
		e.logger.Debug("no active plan, matching without bonus", "participant", participantID)
	default:
		return nil, err
	}

	gross := bvValue.Mul(decimal.NewFromInt(units))
	tds := gross.Mul(e.cfg.TDSPercent).Div(hundred).Round(2)
	net := gross.Sub(tds)

	if err := e.ledger.ConsumeMatch(ctx, tx, participantID, consume); err != nil {
		return nil, err
	}
	if _, err := e.log.MarkMatched(ctx, tx, participantID, consume); err != nil {
		return nil, err
	}

	res.Matched = true
	res.Consumed = consume
	res.Units = units
	res.Remainder = sum.Matchable - units*e.cfg.BaseUnit
	res.BVValue, res.Gross, res.TDS, res.Net = bvValue, gross, tds, net

	if err := tx.AddParticipantIncome(ctx, participantID, net, 1); err != nil {
		return nil, err
	}
	if net.IsPositive() {
		res.Transaction, err = e.wallet.Credit(ctx, tx, wallet.Entry{
			ParticipantID: participantID,
			Amount:        net,
			Type:          models.TxBVMatch,
			ReferenceID:   uuid.New().String(),
			Metadata: map[string]any{
				"matched_bv":          consume,
				"units":               units,
				"unpaid_remainder_bv": res.Remainder,
				"bv_value":            bvValue.String(),
				"gross":               gross.String(),
				"tds":                 tds.String(),
				"subscription_id":     subscriptionID,
			},
		})
		if err != nil {
			return nil, err
		}
	}

	e.logger.Debug("match processed", "participant", participantID, "consumed", consume, "units", units, "net", net)
	return res, nil
}

// BatchReport summarizes ProcessAllParticipants.
type BatchReport struct {
	Processed  int             `json:"processed"`
	Matched    int             `json:"matched"`
	TotalBonus decimal.Decimal `json:"total_bonus"`
	Results    []*Result       `json:"-"`
	Failures   []Failure       `json:"failures,omitempty"`
}

type Failure struct {
	ParticipantID string `json:"participant_id"`
	Err           error  `json:"-"`
}

// ProcessAllParticipants reconciles every active participant, each in its own
// transaction. A failure for one participant does not stop the others; all
// failures are returned joined.
func (e *Engine) ProcessAllParticipants(ctx context.Context, store models.Store) (*BatchReport, error) {
	var ids []string
	err := store.WithTx(ctx, func(tx models.Tx) error {
		var err error
		ids, err = tx.ListActiveParticipantIDs(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list active participants: %w", err)
	}

	report := &BatchReport{TotalBonus: decimal.Zero}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)

	for _, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var res *Result
			err := store.WithTx(ctx, func(tx models.Tx) error {
				var err error
				res, err = e.ProcessMatch(ctx, tx, id)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			report.Processed++
			if err != nil {
				e.logger.With("participant", id).Error("batch match failed", "error", err)
				report.Failures = append(report.Failures, Failure{ParticipantID: id, Err: err})
				return nil
			}
			if res.Matched {
				report.Matched++
				report.TotalBonus = report.TotalBonus.Add(res.Net)
				report.Results = append(report.Results, res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	if len(report.Failures) > 0 {
		errs := make([]error, 0, len(report.Failures))
		for _, f := range report.Failures {
			errs = append(errs, fmt.Errorf("participant %s: %w", f.ParticipantID, f.Err))
		}
		return report, errors.Join(errs...)
	}
	return report, nil
}
