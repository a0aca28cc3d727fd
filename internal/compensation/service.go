// Package compensation exposes the BV engine as business events and
// dashboard operations. Each call is one store transaction; metrics and
// notifications are emitted only after it commits.
package compensation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/binaryhub/internal/activation"
	"github.com/sudo-init-do/binaryhub/internal/alerts"
	"github.com/sudo-init-do/binaryhub/internal/config"
	"github.com/sudo-init-do/binaryhub/internal/contribution"
	"github.com/sudo-init-do/binaryhub/internal/distributor"
	"github.com/sudo-init-do/binaryhub/internal/logger"
	"github.com/sudo-init-do/binaryhub/internal/matching"
	"github.com/sudo-init-do/binaryhub/internal/metrics"
	"github.com/sudo-init-do/binaryhub/internal/models"
	"github.com/sudo-init-do/binaryhub/internal/tree"
	"github.com/sudo-init-do/binaryhub/internal/volume"
	"github.com/sudo-init-do/binaryhub/internal/wallet"
)

type Service struct {
	store    models.Store
	tree     *tree.Tree
	ledger   *volume.Ledger
	wallet   *wallet.Wallet
	engine   *matching.Engine
	trigger  *activation.Trigger
	notifier alerts.Notifier
	logger   *logger.Logger
	now      func() time.Time
}

// NewService wires the engine components around store. A nil notifier
// disables notifications.
func NewService(store models.Store, cfg config.Compensation, notifier alerts.Notifier, lg *logger.Logger) *Service {
	if notifier == nil {
		notifier = alerts.Nop{}
	}
	if lg == nil {
		lg = logger.NewNop()
	}
	t := tree.New(cfg.MaxUplineDepth, cfg.SingleSlot)
	ledger := volume.NewLedger()
	log := contribution.NewLog()
	w := wallet.New()
	d := distributor.New(t, ledger, log, cfg.FixedContribution, lg)
	e := matching.New(matching.Config{
		BaseUnit:   cfg.BaseUnit,
		Remainder:  cfg.RemainderPolicy,
		TDSPercent: cfg.TDSPercent,
		Workers:    cfg.BatchWorkers,
	}, ledger, log, w, lg)

	return &Service{
		store:    store,
		tree:     t,
		ledger:   ledger,
		wallet:   w,
		engine:   e,
		trigger:  activation.New(t, d, e, w, cfg.SponsorBonus, lg),
		notifier: notifier,
		logger:   lg,
		now:      time.Now,
	}
}

// PaymentApproved is emitted when a participant's plan payment clears.
type PaymentApproved struct {
	ParticipantID string `json:"participant_id"`
	PlanID        string `json:"plan_id"`
	PaymentID     string `json:"payment_id"`
}

// PlanRequestApproved is emitted when an admin approves a plan request.
type PlanRequestApproved struct {
	ParticipantID string `json:"participant_id"`
	PlanID        string `json:"plan_id"`
	RequestID     string `json:"request_id"`
}

// ActivateAccount handles the account-activated event.
func (s *Service) ActivateAccount(ctx context.Context, participantID string) (*activation.Result, error) {
	var res *activation.Result
	err := s.store.WithTx(ctx, func(tx models.Tx) error {
		var err error
		res, err = s.trigger.Activate(ctx, tx, participantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterActivation(ctx, res)
	return res, nil
}

// ApprovePayment subscribes the participant to the paid plan and activates
// the account in the same transaction.
func (s *Service) ApprovePayment(ctx context.Context, ev PaymentApproved) (*activation.Result, error) {
	return s.subscribeAndActivate(ctx, ev.ParticipantID, ev.PlanID, ev.PaymentID)
}

// ApprovePlanRequest follows the same flow as ApprovePayment.
func (s *Service) ApprovePlanRequest(ctx context.Context, ev PlanRequestApproved) (*activation.Result, error) {
	return s.subscribeAndActivate(ctx, ev.ParticipantID, ev.PlanID, ev.RequestID)
}

func (s *Service) subscribeAndActivate(ctx context.Context, participantID, planID, referenceID string) (*activation.Result, error) {
	if participantID == "" || planID == "" {
		return nil, fmt.Errorf("%w: participant_id and plan_id are required", models.ErrValidation)
	}

	var res *activation.Result
	err := s.store.WithTx(ctx, func(tx models.Tx) error {
		if _, err := tx.LockParticipant(ctx, participantID); err != nil {
			return err
		}
		plan, err := tx.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		sub := &models.PlanSubscription{
			ID:            uuid.New().String(),
			ParticipantID: participantID,
			PlanID:        plan.ID,
			BVValue:       plan.BVValue,
			Active:        true,
			ReferenceID:   referenceID,
			CreatedAt:     s.now(),
		}
		if err := tx.CreateSubscription(ctx, sub); err != nil {
			return err
		}
		res, err = s.trigger.Activate(ctx, tx, participantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterActivation(ctx, res)
	return res, nil
}

func (s *Service) afterActivation(ctx context.Context, res *activation.Result) {
	if !res.Activated {
		return
	}
	p := res.Participant
	metrics.Activations.Inc()
	if n := len(res.Distribution.Ancestors); n > 0 {
		metrics.VolumeCredited.WithLabelValues(string(res.Distribution.Side)).
			Add(float64(res.Distribution.Amount * int64(n)))
	}
	s.logger.Info("account activated", "participant", p.Username, "ancestors", len(res.Distribution.Ancestors), "matches", len(res.Matches))

	if p.Email != "" {
		if err := s.notifier.AccountActivated(ctx, p.ID, p.Username, p.Email, len(res.Distribution.Ancestors)); err != nil {
			s.logger.Warn("activation notification not queued", "participant", p.ID, "error", err)
		}
	}

	byID := make(map[string]*models.Participant, len(res.Distribution.Ancestors))
	for _, a := range res.Distribution.Ancestors {
		byID[a.ID] = a
	}
	for _, m := range res.Matches {
		s.afterMatch(ctx, m, byID[m.ParticipantID])
	}
}

func (s *Service) afterMatch(ctx context.Context, m *matching.Result, p *models.Participant) {
	if !m.Matched {
		return
	}
	metrics.Matches.Inc()
	metrics.MatchBonusPaid.Add(m.Net.InexactFloat64())
	if p == nil || p.Email == "" || !m.Net.IsPositive() {
		return
	}
	if err := s.notifier.MatchPaid(ctx, p.ID, p.Username, p.Email, m.Consumed, m.Net); err != nil {
		s.logger.Warn("match notification not queued", "participant", p.ID, "error", err)
	}
}

// GetSummary returns the participant's BV counters.
func (s *Service) GetSummary(ctx context.Context, participantID string) (*models.VolumeSummary, error) {
	var sum *models.VolumeSummary
	err := s.store.WithTx(ctx, func(tx models.Tx) error {
		if _, err := tx.GetParticipant(ctx, participantID); err != nil {
			return err
		}
		var err error
		sum, err = s.ledger.Summary(ctx, tx, participantID)
		return err
	})
	return sum, err
}

// GetReferralTreeBV aggregates each leg of the participant's downline.
func (s *Service) GetReferralTreeBV(ctx context.Context, participantID string) (*models.ReferralTreeBV, error) {
	out := &models.ReferralTreeBV{ParticipantID: participantID}
	err := s.store.WithTx(ctx, func(tx models.Tx) error {
		p, err := tx.GetParticipant(ctx, participantID)
		if err != nil {
			return err
		}
		sum, err := s.ledger.Summary(ctx, tx, participantID)
		if err != nil {
			return err
		}
		for _, leg := range []struct {
			side     models.Side
			dst      *models.SubtreeBV
			lifetime int64
			carry    int64
		}{
			{models.SideLeft, &out.Left, sum.LifetimeLeft, sum.CarryLeft},
			{models.SideRight, &out.Right, sum.LifetimeRight, sum.CarryRight},
		} {
			members, active, err := s.tree.SubtreeStats(ctx, tx, p.Username, leg.side)
			if err != nil {
				return err
			}
			*leg.dst = models.SubtreeBV{
				Members:        members,
				ActiveMembers:  active,
				LifetimeVolume: leg.lifetime,
				CarryVolume:    leg.carry,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ForceProcessMatches runs one match for the participant outside any event.
func (s *Service) ForceProcessMatches(ctx context.Context, participantID string) (*matching.Result, error) {
	var res *matching.Result
	var p *models.Participant
	err := s.store.WithTx(ctx, func(tx models.Tx) error {
		var err error
		if p, err = tx.GetParticipant(ctx, participantID); err != nil {
			return err
		}
		res, err = s.engine.ProcessMatch(ctx, tx, participantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterMatch(ctx, res, p)
	return res, nil
}

// ProcessAllParticipants reconciles every active participant. The report is
// returned even when some participants failed.
func (s *Service) ProcessAllParticipants(ctx context.Context) (*matching.BatchReport, error) {
	started := s.now()
	report, err := s.engine.ProcessAllParticipants(ctx, s.store)
	if report == nil {
		return nil, err
	}
	for _, m := range report.Results {
		s.afterMatch(ctx, m, nil)
	}
	if n := len(report.Failures); n > 0 {
		metrics.BatchFailures.Add(float64(n))
		if nerr := s.notifier.BatchFailed(ctx, n, report.Processed, err.Error()); nerr != nil {
			s.logger.Warn("batch failure alert not queued", "error", nerr)
		}
	}
	s.logger.Info("batch reconciliation finished",
		"processed", report.Processed, "matched", report.Matched, "failed", len(report.Failures),
		"bonus", report.TotalBonus, "duration", s.now().Sub(started))
	return report, err
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Sponsor  string `json:"sponsor_username"`
	Side     string `json:"side"`
}

// RegisterParticipant places a new inactive participant under its sponsor.
func (s *Service) RegisterParticipant(ctx context.Context, req RegisterRequest) (*models.Participant, error) {
	side, err := models.ParseSide(strings.ToLower(strings.TrimSpace(req.Side)))
	if err != nil {
		return nil, err
	}
	p := &models.Participant{
		ID:               uuid.New().String(),
		Username:         strings.TrimSpace(req.Username),
		Email:            strings.TrimSpace(req.Email),
		Sponsor:          strings.TrimSpace(req.Sponsor),
		Side:             side,
		TotalIncome:      decimal.Zero,
		TotalWithdrawals: decimal.Zero,
		CreatedAt:        s.now(),
	}
	err = s.store.WithTx(ctx, func(tx models.Tx) error {
		if err := s.tree.Place(ctx, tx, p); err != nil {
			return err
		}
		return tx.CreateParticipant(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("participant registered", "participant", p.Username, "sponsor", p.Sponsor, "side", p.Side)
	return p, nil
}

// ListParticipants returns the newest participants first.
func (s *Service) ListParticipants(ctx context.Context, limit int) ([]*models.Participant, error) {
	var out []*models.Participant
	err := s.store.WithTx(ctx, func(tx models.Tx) error {
		var err error
		out, err = tx.ListParticipants(ctx, limit)
		return err
	})
	return out, err
}

// CreatePlan adds a purchasable plan.
func (s *Service) CreatePlan(ctx context.Context, name string, price, bvValue decimal.Decimal) (*models.Plan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: plan name is required", models.ErrValidation)
	}
	if price.IsNegative() || bvValue.IsNegative() {
		return nil, fmt.Errorf("%w: price and bv_value must not be negative", models.ErrValidation)
	}
	plan := &models.Plan{ID: uuid.New().String(), Name: name, Price: price, BVValue: bvValue, CreatedAt: s.now()}
	err := s.store.WithTx(ctx, func(tx models.Tx) error {
		return tx.CreatePlan(ctx, plan)
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Withdraw pays amount out of the participant's wallet.
func (s *Service) Withdraw(ctx context.Context, participantID string, amount decimal.Decimal) (*models.WalletTransaction, error) {
	var wt *models.WalletTransaction
	err := s.store.WithTx(ctx, func(tx models.Tx) error {
		var err error
		wt, err = s.wallet.Withdraw(ctx, tx, participantID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.Withdrawals.Inc()
	s.logger.Info("withdrawal completed", "participant", participantID, "amount", amount)
	return wt, nil
}

// WalletBalance returns the participant's wallet, empty if never credited.
func (s *Service) WalletBalance(ctx context.Context, participantID string) (*models.WalletAccount, error) {
	var w *models.WalletAccount
	err := s.store.WithTx(ctx, func(tx models.Tx) error {
		if _, err := tx.GetParticipant(ctx, participantID); err != nil {
			return err
		}
		var err error
		w, err = tx.GetWallet(ctx, participantID)
		return err
	})
	return w, err
}

// WalletTransactions returns the newest wallet movements first.
func (s *Service) WalletTransactions(ctx context.Context, participantID string, limit int) ([]*models.WalletTransaction, error) {
	var txs []*models.WalletTransaction
	err := s.store.WithTx(ctx, func(tx models.Tx) error {
		if _, err := tx.GetParticipant(ctx, participantID); err != nil {
			return err
		}
		var err error
		txs, err = tx.ListWalletTransactions(ctx, participantID, limit)
		return err
	})
	return txs, err
}

// Stats returns network-wide totals.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	var st *models.Stats
	err := s.store.WithTx(ctx, func(tx models.Tx) error {
		var err error
		st, err = tx.Stats(ctx)
		return err
	})
	return st, err
}
