package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/binaryhub/internal/logger"
	"github.com/sudo-init-do/binaryhub/internal/models"
)

// Postgres error codes that mean "try the whole transaction again".
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available (lock_timeout)
}

type PostgresDB struct {
	logger *logger.Logger

	Conn        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewPostgresDB(conn *pgxpool.Pool, lockTimeout time.Duration, log *logger.Logger) *PostgresDB {
	if log == nil {
		log = logger.NewNop()
	}
	return &PostgresDB{Conn: conn, lockTimeout: lockTimeout, logger: log}
}

// WithTx runs fn in a single Postgres transaction. Row locks taken by fn are
// bounded by lock_timeout so a stuck writer surfaces as ErrTransient.
func (db *PostgresDB) WithTx(ctx context.Context, fn func(tx models.Tx) error) error {
	tx, err := db.Conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("failed to start transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	if db.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", db.lockTimeout.Milliseconds())); err != nil {
			return classify(fmt.Errorf("failed to set lock timeout: %w", err))
		}
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		db.logger.Debug("transaction rolled back", "error", err)
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// classify tags retryable Postgres failures with models.ErrTransient.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && transientCodes[pgErr.Code] {
		return fmt.Errorf("%w: %w", models.ErrTransient, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type pgTx struct {
	tx pgx.Tx
}

const participantColumns = `id, username, COALESCE(email, ''), COALESCE(sponsor_username, ''), COALESCE(side, ''),
        is_active, total_income, total_withdrawals, total_matched, created_at`

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	var side string
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.Sponsor, &side,
		&p.Active, &p.TotalIncome, &p.TotalWithdrawals, &p.TotalMatched, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to read participant: %w", err)
	}
	p.Side = models.Side(side)
	return &p, nil
}

func (t *pgTx) CreateParticipant(ctx context.Context, p *models.Participant) error {
	_, err := t.tx.Exec(ctx, `
        INSERT INTO participants (id, username, email, sponsor_username, side, is_active, created_at)
        VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7)`,
		p.ID, p.Username, p.Email, p.Sponsor, string(p.Side), p.Active, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrUsernameTaken
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (t *pgTx) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	return scanParticipant(t.tx.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = $1`, id))
}

func (t *pgTx) GetParticipantByUsername(ctx context.Context, username string) (*models.Participant, error) {
	return scanParticipant(t.tx.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE username = $1`, username))
}

func (t *pgTx) LockParticipant(ctx context.Context, id string) (*models.Participant, error) {
	return scanParticipant(t.tx.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) ListChildren(ctx context.Context, sponsorUsername string) ([]*models.Participant, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+participantColumns+` FROM participants
         WHERE sponsor_username = $1
         ORDER BY created_at, id`, sponsorUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var children []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, p)
	}
	return children, rows.Err()
}

func (t *pgTx) ListActiveParticipantIDs(ctx context.Context) ([]string, error) {
	rows, err := t.tx.Query(ctx, `SELECT id FROM participants WHERE is_active ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active participants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to read participant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *pgTx) ListParticipants(ctx context.Context, limit int) ([]*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var out []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) SetParticipantActive(ctx context.Context, id string, active bool) error {
	ct, err := t.tx.Exec(ctx, `UPDATE participants SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update participant status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return models.ErrParticipantNotFound
	}
	return nil
}

func (t *pgTx) AddParticipantIncome(ctx context.Context, id string, income decimal.Decimal, matches int64) error {
	ct, err := t.tx.Exec(ctx, `
        UPDATE participants
        SET total_income = total_income + $1, total_matched = total_matched + $2
        WHERE id = $3`, income, matches, id)
	if err != nil {
		return fmt.Errorf("failed to update participant income: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return models.ErrParticipantNotFound
	}
	return nil
}

func (t *pgTx) AddParticipantWithdrawal(ctx context.Context, id string, amount decimal.Decimal) error {
	ct, err := t.tx.Exec(ctx,
		`UPDATE participants SET total_withdrawals = total_withdrawals + $1 WHERE id = $2`, amount, id)
	if err != nil {
		return fmt.Errorf("failed to update participant withdrawals: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return models.ErrParticipantNotFound
	}
	return nil
}

const volumeColumns = `participant_id, lifetime_left, lifetime_right, carry_left, carry_right, updated_at`

func scanVolume(row pgx.Row) (*models.VolumeAccount, error) {
	var a models.VolumeAccount
	if err := row.Scan(&a.ParticipantID, &a.LifetimeLeft, &a.LifetimeRight, &a.CarryLeft, &a.CarryRight, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *pgTx) LockVolumeAccount(ctx context.Context, participantID string) (*models.VolumeAccount, error) {
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO volume_accounts (participant_id) VALUES ($1) ON CONFLICT (participant_id) DO NOTHING`,
		participantID); err != nil {
		return nil, fmt.Errorf("failed to create volume account: %w", err)
	}
	a, err := scanVolume(t.tx.QueryRow(ctx,
		`SELECT `+volumeColumns+` FROM volume_accounts WHERE participant_id = $1 FOR UPDATE`, participantID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock volume account: %w", err)
	}
	return a, nil
}

func (t *pgTx) GetVolumeAccount(ctx context.Context, participantID string) (*models.VolumeAccount, error) {
	a, err := scanVolume(t.tx.QueryRow(ctx,
		`SELECT `+volumeColumns+` FROM volume_accounts WHERE participant_id = $1`, participantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.VolumeAccount{ParticipantID: participantID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get volume account: %w", err)
	}
	return a, nil
}

func (t *pgTx) SaveVolumeAccount(ctx context.Context, a *models.VolumeAccount) error {
	_, err := t.tx.Exec(ctx, `
        UPDATE volume_accounts
        SET lifetime_left = $1, lifetime_right = $2, carry_left = $3, carry_right = $4, updated_at = NOW()
        WHERE participant_id = $5`,
		a.LifetimeLeft, a.LifetimeRight, a.CarryLeft, a.CarryRight, a.ParticipantID)
	if err != nil {
		return fmt.Errorf("failed to save volume account: %w", err)
	}
	return nil
}

func (t *pgTx) InsertContribution(ctx context.Context, r *models.ContributionRecord) error {
	_, err := t.tx.Exec(ctx, `
        INSERT INTO bv_contributions (id, recipient_id, source_id, amount, matched, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.RecipientID, r.SourceID, r.Amount, r.Matched, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record contribution: %w", err)
	}
	return nil
}

func (t *pgTx) ListUnmatchedContributions(ctx context.Context, recipientID string) ([]*models.ContributionRecord, error) {
	rows, err := t.tx.Query(ctx, `
        SELECT id, recipient_id, source_id, amount, matched, created_at
        FROM bv_contributions
        WHERE recipient_id = $1 AND NOT matched
        ORDER BY created_at, id`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	defer rows.Close()

	var records []*models.ContributionRecord
	for rows.Next() {
		var r models.ContributionRecord
		if err := rows.Scan(&r.ID, &r.RecipientID, &r.SourceID, &r.Amount, &r.Matched, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to read contribution: %w", err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

func (t *pgTx) MarkContributionsMatched(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `UPDATE bv_contributions SET matched = TRUE WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return fmt.Errorf("failed to mark contributions matched: %w", err)
	}
	return nil
}

const walletColumns = `participant_id, balance, total_earned, total_withdrawn, updated_at`

func scanWallet(row pgx.Row) (*models.WalletAccount, error) {
	var w models.WalletAccount
	if err := row.Scan(&w.ParticipantID, &w.Balance, &w.TotalEarned, &w.TotalWithdrawn, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func (t *pgTx) LockWallet(ctx context.Context, participantID string) (*models.WalletAccount, error) {
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO wallets (participant_id) VALUES ($1) ON CONFLICT (participant_id) DO NOTHING`,
		participantID); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	w, err := scanWallet(t.tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE participant_id = $1 FOR UPDATE`, participantID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return w, nil
}

func (t *pgTx) GetWallet(ctx context.Context, participantID string) (*models.WalletAccount, error) {
	w, err := scanWallet(t.tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE participant_id = $1`, participantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.WalletAccount{ParticipantID: participantID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

func (t *pgTx) SaveWallet(ctx context.Context, w *models.WalletAccount) error {
	_, err := t.tx.Exec(ctx, `
        UPDATE wallets
        SET balance = $1, total_earned = $2, total_withdrawn = $3, updated_at = NOW()
        WHERE participant_id = $4`,
		w.Balance, w.TotalEarned, w.TotalWithdrawn, w.ParticipantID)
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	return nil
}

func (t *pgTx) InsertWalletTransaction(ctx context.Context, wt *models.WalletTransaction) error {
	metadata := wt.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	_, err := t.tx.Exec(ctx, `
        INSERT INTO wallet_transactions
            (id, participant_id, type, amount, balance_before, balance_after, reference_id, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		wt.ID, wt.ParticipantID, string(wt.Type), wt.Amount, wt.BalanceBefore, wt.BalanceAfter,
		wt.ReferenceID, metadata, wt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record wallet transaction: %w", err)
	}
	return nil
}

func (t *pgTx) ListWalletTransactions(ctx context.Context, participantID string, limit int) ([]*models.WalletTransaction, error) {
	query := `
        SELECT id, participant_id, type, amount, balance_before, balance_after,
               COALESCE(reference_id, ''), COALESCE(metadata, '{}'::jsonb), created_at
        FROM wallet_transactions
        WHERE participant_id = $1
        ORDER BY created_at DESC, id`
	args := []any{participantID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.WalletTransaction
	for rows.Next() {
		var wt models.WalletTransaction
		var typ string
		if err := rows.Scan(&wt.ID, &wt.ParticipantID, &typ, &wt.Amount, &wt.BalanceBefore, &wt.BalanceAfter,
			&wt.ReferenceID, &wt.Metadata, &wt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to read wallet transaction: %w", err)
		}
		wt.Type = models.TransactionType(typ)
		txs = append(txs, &wt)
	}
	return txs, rows.Err()
}

func (t *pgTx) CreatePlan(ctx context.Context, p *models.Plan) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO plans (id, name, price, bv_value, created_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Price, p.BVValue, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

func (t *pgTx) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	var p models.Plan
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, price, bv_value, created_at FROM plans WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.BVValue, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &p, nil
}

func (t *pgTx) CreateSubscription(ctx context.Context, s *models.PlanSubscription) error {
	_, err := t.tx.Exec(ctx, `
        INSERT INTO plan_subscriptions (id, participant_id, plan_id, bv_value, is_active, reference_id, created_at)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		s.ID, s.ParticipantID, s.PlanID, s.BVValue, s.Active, s.ReferenceID, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (t *pgTx) GetActiveSubscription(ctx context.Context, participantID string) (*models.PlanSubscription, error) {
	var s models.PlanSubscription
	err := t.tx.QueryRow(ctx, `
        SELECT id, participant_id, plan_id, bv_value, is_active, COALESCE(reference_id, ''), created_at
        FROM plan_subscriptions
        WHERE participant_id = $1 AND is_active
        ORDER BY created_at DESC, id DESC
        LIMIT 1`, participantID).
		Scan(&s.ID, &s.ParticipantID, &s.PlanID, &s.BVValue, &s.Active, &s.ReferenceID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active subscription: %w", err)
	}
	return &s, nil
}

func (t *pgTx) Stats(ctx context.Context) (*models.Stats, error) {
	var st models.Stats
	err := t.tx.QueryRow(ctx, `
        SELECT
            (SELECT COUNT(*) FROM participants),
            (SELECT COUNT(*) FROM participants WHERE is_active),
            (SELECT COALESCE(SUM(lifetime_left + lifetime_right), 0) FROM volume_accounts),
            (SELECT COALESCE(SUM(carry_left + carry_right), 0) FROM volume_accounts),
            (SELECT COALESCE(SUM(total_earned), 0) FROM wallets),
            (SELECT COALESCE(SUM(total_withdrawn), 0) FROM wallets),
            (SELECT COUNT(*) FROM wallet_transactions)`).
		Scan(&st.Participants, &st.ActiveParticipants, &st.LifetimeVolume, &st.CarryVolume,
			&st.TotalEarned, &st.TotalWithdrawn, &st.Transactions)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	return &st, nil
}
