package compensation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/binaryhub/internal/config"
	"github.com/sudo-init-do/binaryhub/internal/models"
	"github.com/sudo-init-do/binaryhub/internal/repository"
	"github.com/sudo-init-do/binaryhub/internal/testutil"
)

type notification struct {
	kind string
	id   string
	net  decimal.Decimal
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (f *fakeNotifier) record(n notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeNotifier) MatchPaid(_ context.Context, id, _, _ string, _ int64, net decimal.Decimal) error {
	return f.record(notification{kind: "match", id: id, net: net})
}

func (f *fakeNotifier) AccountActivated(_ context.Context, id, _, _ string, _ int) error {
	return f.record(notification{kind: "activated", id: id})
}

func (f *fakeNotifier) BatchFailed(context.Context, int, int, string) error {
	return f.record(notification{kind: "batch"})
}

func newService(t *testing.T, mutate func(*config.Compensation)) (*Service, *repository.Memory, *fakeNotifier) {
	t.Helper()
	cfg := config.DefaultCompensation()
	if mutate != nil {
		mutate(&cfg)
	}
	mem := repository.NewMemory()
	n := &fakeNotifier{}
	return NewService(mem, cfg, n, nil), mem, n
}

func register(t *testing.T, s *Service, username, sponsor, side string) *models.Participant {
	t.Helper()
	p, err := s.RegisterParticipant(context.Background(), RegisterRequest{
		Username: username, Email: username + "@example.com", Sponsor: sponsor, Side: side,
	})
	if err != nil {
		t.Fatalf("RegisterParticipant(%s) error: %v", username, err)
	}
	return p
}

func TestService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	s, mem, n := newService(t, nil)

	plan, err := s.CreatePlan(ctx, "Gold", decimal.NewFromInt(1000), decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("CreatePlan() error: %v", err)
	}
	root := register(t, s, "root", "", "")
	a := register(t, s, "a", "root", "left")
	b := register(t, s, "b", "root", "RIGHT")

	if _, err := s.ApprovePayment(ctx, PaymentApproved{ParticipantID: root.ID, PlanID: plan.ID, PaymentID: "pay-root"}); err != nil {
		t.Fatalf("ApprovePayment(root) error: %v", err)
	}
	if _, err := s.ApprovePlanRequest(ctx, PlanRequestApproved{ParticipantID: a.ID, PlanID: plan.ID, RequestID: "req-a"}); err != nil {
		t.Fatalf("ApprovePlanRequest(a) error: %v", err)
	}
	res, err := s.ActivateAccount(ctx, b.ID)
	if err != nil {
		t.Fatalf("ActivateAccount(b) error: %v", err)
	}
	if len(res.Matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(res.Matches))
	}

	sum, err := s.GetSummary(ctx, root.ID)
	if err != nil {
		t.Fatalf("GetSummary() error: %v", err)
	}
	if sum.LifetimeLeft != 50 || sum.LifetimeRight != 50 || sum.Matchable != 0 {
		t.Errorf("summary = %+v", sum)
	}

	w, err := s.WalletBalance(ctx, root.ID)
	if err != nil {
		t.Fatalf("WalletBalance() error: %v", err)
	}
	if !w.Balance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("root balance = %s, want 10", w.Balance)
	}

	wt, err := s.Withdraw(ctx, root.ID, decimal.NewFromInt(4))
	if err != nil {
		t.Fatalf("Withdraw() error: %v", err)
	}
	if !wt.BalanceAfter.Equal(decimal.NewFromInt(6)) {
		t.Errorf("BalanceAfter = %s, want 6", wt.BalanceAfter)
	}
	if _, err := s.Withdraw(ctx, root.ID, decimal.NewFromInt(7)); !errors.Is(err, models.ErrInsufficientBalance) {
		t.Errorf("overdraw error = %v, want insufficient balance", err)
	}

	txs, err := s.WalletTransactions(ctx, root.ID, 0)
	if err != nil {
		t.Fatalf("WalletTransactions() error: %v", err)
	}
	if len(txs) != 2 || txs[0].Type != models.TxWithdrawal || txs[1].Type != models.TxBVMatch {
		t.Errorf("transactions = %+v, want withdrawal then bv_match", txs)
	}

	acct := testutil.Wallet(t, mem, root.ID)
	if err := acct.Check(); err != nil {
		t.Errorf("balance identity broken: %+v", acct)
	}

	kinds := map[string]int{}
	for _, sent := range n.sent {
		kinds[sent.kind]++
	}
	if kinds["activated"] != 3 || kinds["match"] != 1 {
		t.Errorf("notifications = %v, want 3 activations and 1 match", kinds)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if st.Participants != 3 || st.ActiveParticipants != 3 || st.Transactions != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestService_ReferralTreeBV(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t, nil)

	root := register(t, s, "root", "", "")
	a := register(t, s, "a", "root", "left")
	register(t, s, "a1", "a", "right")
	b := register(t, s, "b", "root", "right")
	for _, id := range []string{root.ID, a.ID, b.ID} {
		if _, err := s.ActivateAccount(ctx, id); err != nil {
			t.Fatalf("ActivateAccount() error: %v", err)
		}
	}

	tree, err := s.GetReferralTreeBV(ctx, root.ID)
	if err != nil {
		t.Fatalf("GetReferralTreeBV() error: %v", err)
	}
	if tree.Left.Members != 2 || tree.Left.ActiveMembers != 1 || tree.Left.LifetimeVolume != 50 {
		t.Errorf("left = %+v", tree.Left)
	}
	if tree.Right.Members != 1 || tree.Right.ActiveMembers != 1 || tree.Right.LifetimeVolume != 50 {
		t.Errorf("right = %+v", tree.Right)
	}
	// No plan, so the match consumed carry without paying.
	if tree.Left.CarryVolume != 0 || tree.Right.CarryVolume != 0 {
		t.Errorf("carry = %d/%d, want 0/0", tree.Left.CarryVolume, tree.Right.CarryVolume)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t, func(c *config.Compensation) { c.SingleSlot = true })
	register(t, s, "root", "", "")
	register(t, s, "a", "root", "left")

	tests := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"duplicate", RegisterRequest{Username: "a", Sponsor: "root", Side: "right"}, models.ErrUsernameTaken},
		{"bad side", RegisterRequest{Username: "x", Sponsor: "root", Side: "middle"}, models.ErrInvalidSide},
		{"occupied", RegisterRequest{Username: "x", Sponsor: "root", Side: "left"}, models.ErrSideOccupied},
		{"unknown sponsor", RegisterRequest{Username: "x", Sponsor: "ghost", Side: "left"}, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.RegisterParticipant(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("RegisterParticipant() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestService_ApproveUnknownPlanRollsBack(t *testing.T) {
	ctx := context.Background()
	s, mem, _ := newService(t, nil)
	register(t, s, "root", "", "")
	a := register(t, s, "a", "root", "left")

	_, err := s.ApprovePayment(ctx, PaymentApproved{ParticipantID: a.ID, PlanID: "missing", PaymentID: "p"})
	if !errors.Is(err, models.ErrPlanNotFound) {
		t.Fatalf("ApprovePayment() error = %v, want plan not found", err)
	}
	if p := testutil.Participant(t, mem, a.ID); p.Active {
		t.Error("participant activated despite failed approval")
	}
	if _, err := s.ApprovePayment(ctx, PaymentApproved{PlanID: "x"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("missing participant id error = %v, want validation", err)
	}
}

func TestService_NotificationFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	s, _, n := newService(t, nil)
	n.err = errors.New("redis down")
	root := register(t, s, "root", "", "")

	res, err := s.ActivateAccount(ctx, root.ID)
	if err != nil || !res.Activated {
		t.Fatalf("ActivateAccount() = %+v, %v", res, err)
	}
}

func TestService_NoEmailSkipsNotifications(t *testing.T) {
	ctx := context.Background()
	s, mem, n := newService(t, nil)
	root, err := s.RegisterParticipant(ctx, RegisterRequest{Username: "root"})
	if err != nil {
		t.Fatalf("RegisterParticipant() error: %v", err)
	}

	if _, err := s.ActivateAccount(ctx, root.ID); err != nil {
		t.Fatalf("ActivateAccount() error: %v", err)
	}
	testutil.Subscribe(t, mem, root.ID, 10)
	testutil.SetCarry(t, mem, root.ID, 50, 50)
	res, err := s.ForceProcessMatches(ctx, root.ID)
	if err != nil {
		t.Fatalf("ForceProcessMatches() error: %v", err)
	}
	if !res.Net.IsPositive() {
		t.Fatalf("Net = %s, want a paid match", res.Net)
	}
	if len(n.sent) != 0 {
		t.Errorf("notifications = %+v, want none without an email", n.sent)
	}
}

func TestService_ForceAndBatch(t *testing.T) {
	ctx := context.Background()
	s, mem, n := newService(t, func(c *config.Compensation) { c.TDSPercent = decimal.NewFromInt(10) })
	root := register(t, s, "root", "", "")
	if _, err := s.ActivateAccount(ctx, root.ID); err != nil {
		t.Fatalf("ActivateAccount() error: %v", err)
	}
	testutil.Subscribe(t, mem, root.ID, 20)
	testutil.SetCarry(t, mem, root.ID, 100, 100)

	res, err := s.ForceProcessMatches(ctx, root.ID)
	if err != nil {
		t.Fatalf("ForceProcessMatches() error: %v", err)
	}
	if !res.Net.Equal(decimal.NewFromInt(36)) {
		t.Errorf("Net = %s, want 36 after 10%% TDS on 40", res.Net)
	}
	if last := n.sent[len(n.sent)-1]; last.kind != "match" || !last.net.Equal(res.Net) {
		t.Errorf("last notification = %+v", last)
	}

	testutil.SetCarry(t, mem, root.ID, 50, 50)
	report, err := s.ProcessAllParticipants(ctx)
	if err != nil {
		t.Fatalf("ProcessAllParticipants() error: %v", err)
	}
	if report.Matched != 1 || !report.TotalBonus.Equal(decimal.NewFromInt(18)) {
		t.Errorf("report = %+v", report)
	}

	if _, err := s.ForceProcessMatches(ctx, "ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("ForceProcessMatches(ghost) error = %v, want not found", err)
	}
}
