package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/binaryhub/internal/models"
)

// Memory is an in-process Store. Transactions are serialized by a mutex and
// run against a working copy that replaces the committed state only when fn
// succeeds, so a failed transaction leaves nothing behind.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx models.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memTx{s: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

type memState struct {
	participants  map[string]*models.Participant
	byUsername    map[string]string
	order         []string
	volumes       map[string]*models.VolumeAccount
	contributions []*models.ContributionRecord
	wallets       map[string]*models.WalletAccount
	walletTxs     []*models.WalletTransaction
	plans         map[string]*models.Plan
	subscriptions []*models.PlanSubscription
}

func newMemState() *memState {
	return &memState{
		participants: map[string]*models.Participant{},
		byUsername:   map[string]string{},
		volumes:      map[string]*models.VolumeAccount{},
		wallets:      map[string]*models.WalletAccount{},
		plans:        map[string]*models.Plan{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for id, p := range s.participants {
		cp := *p
		c.participants[id] = &cp
	}
	for k, v := range s.byUsername {
		c.byUsername[k] = v
	}
	c.order = slices.Clone(s.order)
	for id, a := range s.volumes {
		ca := *a
		c.volumes[id] = &ca
	}
	c.contributions = make([]*models.ContributionRecord, len(s.contributions))
	for i, r := range s.contributions {
		cr := *r
		c.contributions[i] = &cr
	}
	for id, w := range s.wallets {
		cw := *w
		c.wallets[id] = &cw
	}
	// wallet transactions, plans and subscriptions are never updated in place
	c.walletTxs = slices.Clone(s.walletTxs)
	for id, p := range s.plans {
		c.plans[id] = p
	}
	c.subscriptions = slices.Clone(s.subscriptions)
	return c
}

type memTx struct {
	s *memState
}

func (t *memTx) CreateParticipant(_ context.Context, p *models.Participant) error {
	if _, ok := t.s.byUsername[p.Username]; ok {
		return models.ErrUsernameTaken
	}
	cp := *p
	t.s.participants[p.ID] = &cp
	t.s.byUsername[p.Username] = p.ID
	t.s.order = append(t.s.order, p.ID)
	return nil
}

func (t *memTx) GetParticipant(_ context.Context, id string) (*models.Participant, error) {
	p, ok := t.s.participants[id]
	if !ok {
		return nil, models.ErrParticipantNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) GetParticipantByUsername(ctx context.Context, username string) (*models.Participant, error) {
	id, ok := t.s.byUsername[username]
	if !ok {
		return nil, models.ErrParticipantNotFound
	}
	return t.GetParticipant(ctx, id)
}

func (t *memTx) LockParticipant(ctx context.Context, id string) (*models.Participant, error) {
	return t.GetParticipant(ctx, id)
}

func (t *memTx) ListChildren(_ context.Context, sponsorUsername string) ([]*models.Participant, error) {
	var children []*models.Participant
	for _, id := range t.s.order {
		if p := t.s.participants[id]; p.Sponsor == sponsorUsername && sponsorUsername != "" {
			cp := *p
			children = append(children, &cp)
		}
	}
	return children, nil
}

func (t *memTx) ListActiveParticipantIDs(_ context.Context) ([]string, error) {
	var ids []string
	for _, id := range t.s.order {
		if t.s.participants[id].Active {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (t *memTx) ListParticipants(_ context.Context, limit int) ([]*models.Participant, error) {
	var out []*models.Participant
	for i := len(t.s.order) - 1; i >= 0; i-- {
		cp := *t.s.participants[t.s.order[i]]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) SetParticipantActive(_ context.Context, id string, active bool) error {
	p, ok := t.s.participants[id]
	if !ok {
		return models.ErrParticipantNotFound
	}
	p.Active = active
	return nil
}

func (t *memTx) AddParticipantIncome(_ context.Context, id string, income decimal.Decimal, matches int64) error {
	p, ok := t.s.participants[id]
	if !ok {
		return models.ErrParticipantNotFound
	}
	p.TotalIncome = p.TotalIncome.Add(income)
	p.TotalMatched += matches
	return nil
}

func (t *memTx) AddParticipantWithdrawal(_ context.Context, id string, amount decimal.Decimal) error {
	p, ok := t.s.participants[id]
	if !ok {
		return models.ErrParticipantNotFound
	}
	p.TotalWithdrawals = p.TotalWithdrawals.Add(amount)
	return nil
}

func (t *memTx) LockVolumeAccount(ctx context.Context, participantID string) (*models.VolumeAccount, error) {
	if _, ok := t.s.volumes[participantID]; !ok {
		t.s.volumes[participantID] = &models.VolumeAccount{ParticipantID: participantID}
	}
	return t.GetVolumeAccount(ctx, participantID)
}

func (t *memTx) GetVolumeAccount(_ context.Context, participantID string) (*models.VolumeAccount, error) {
	a, ok := t.s.volumes[participantID]
	if !ok {
		return &models.VolumeAccount{ParticipantID: participantID}, nil
	}
	ca := *a
	return &ca, nil
}

func (t *memTx) SaveVolumeAccount(_ context.Context, a *models.VolumeAccount) error {
	if err := a.Check(); err != nil {
		return err
	}
	ca := *a
	t.s.volumes[a.ParticipantID] = &ca
	return nil
}

func (t *memTx) InsertContribution(_ context.Context, r *models.ContributionRecord) error {
	cr := *r
	t.s.contributions = append(t.s.contributions, &cr)
	return nil
}

func (t *memTx) ListUnmatchedContributions(_ context.Context, recipientID string) ([]*models.ContributionRecord, error) {
	var records []*models.ContributionRecord
	for _, r := range t.s.contributions {
		if r.RecipientID == recipientID && !r.Matched {
			cr := *r
			records = append(records, &cr)
		}
	}
	return records, nil
}

func (t *memTx) MarkContributionsMatched(_ context.Context, ids []string) error {
	for _, r := range t.s.contributions {
		if slices.Contains(ids, r.ID) {
			r.Matched = true
		}
	}
	return nil
}

// Contributions returns every record for recipientID in insertion order.
func (m *Memory) Contributions(recipientID string) []models.ContributionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ContributionRecord
	for _, r := range m.state.contributions {
		if r.RecipientID == recipientID {
			out = append(out, *r)
		}
	}
	return out
}

func (t *memTx) LockWallet(ctx context.Context, participantID string) (*models.WalletAccount, error) {
	if _, ok := t.s.wallets[participantID]; !ok {
		t.s.wallets[participantID] = &models.WalletAccount{ParticipantID: participantID}
	}
	return t.GetWallet(ctx, participantID)
}

func (t *memTx) GetWallet(_ context.Context, participantID string) (*models.WalletAccount, error) {
	w, ok := t.s.wallets[participantID]
	if !ok {
		return &models.WalletAccount{ParticipantID: participantID}, nil
	}
	cw := *w
	return &cw, nil
}

func (t *memTx) SaveWallet(_ context.Context, w *models.WalletAccount) error {
	if w.Balance.IsNegative() {
		return models.ErrInsufficientBalance
	}
	cw := *w
	t.s.wallets[w.ParticipantID] = &cw
	return nil
}

func (t *memTx) InsertWalletTransaction(_ context.Context, wt *models.WalletTransaction) error {
	cwt := *wt
	t.s.walletTxs = append(t.s.walletTxs, &cwt)
	return nil
}

func (t *memTx) ListWalletTransactions(_ context.Context, participantID string, limit int) ([]*models.WalletTransaction, error) {
	var txs []*models.WalletTransaction
	for i := len(t.s.walletTxs) - 1; i >= 0; i-- {
		wt := t.s.walletTxs[i]
		if wt.ParticipantID != participantID {
			continue
		}
		cwt := *wt
		txs = append(txs, &cwt)
		if limit > 0 && len(txs) == limit {
			break
		}
	}
	return txs, nil
}

func (t *memTx) CreatePlan(_ context.Context, p *models.Plan) error {
	cp := *p
	t.s.plans[p.ID] = &cp
	return nil
}

func (t *memTx) GetPlan(_ context.Context, id string) (*models.Plan, error) {
	p, ok := t.s.plans[id]
	if !ok {
		return nil, models.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) CreateSubscription(_ context.Context, s *models.PlanSubscription) error {
	cs := *s
	t.s.subscriptions = append(t.s.subscriptions, &cs)
	return nil
}

// GetActiveSubscription orders by created_at then id, both descending.
func (t *memTx) GetActiveSubscription(_ context.Context, participantID string) (*models.PlanSubscription, error) {
	var best *models.PlanSubscription
	for _, s := range t.s.subscriptions {
		if s.ParticipantID != participantID || !s.Active {
			continue
		}
		if best == nil || s.CreatedAt.After(best.CreatedAt) ||
			(s.CreatedAt.Equal(best.CreatedAt) && s.ID > best.ID) {
			best = s
		}
	}
	if best == nil {
		return nil, models.ErrSubscriptionNotFound
	}
	cs := *best
	return &cs, nil
}

func (t *memTx) Stats(_ context.Context) (*models.Stats, error) {
	st := &models.Stats{
		Participants:   len(t.s.participants),
		TotalEarned:    decimal.Zero,
		TotalWithdrawn: decimal.Zero,
		Transactions:   len(t.s.walletTxs),
	}
	for _, p := range t.s.participants {
		if p.Active {
			st.ActiveParticipants++
		}
	}
	for _, a := range t.s.volumes {
		st.LifetimeVolume += a.LifetimeLeft + a.LifetimeRight
		st.CarryVolume += a.CarryLeft + a.CarryRight
	}
	for _, w := range t.s.wallets {
		st.TotalEarned = st.TotalEarned.Add(w.TotalEarned)
		st.TotalWithdrawn = st.TotalWithdrawn.Add(w.TotalWithdrawn)
	}
	return st, nil
}
