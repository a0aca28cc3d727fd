package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/binaryhub/internal/logger"
)

var Conn *pgxpool.Pool

// Init connects to Postgres and makes sure the compensation schema exists.
func Init(ctx context.Context, dsn string, log *logger.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	log.Info("Connected to Postgres successfully")

	steps := []struct {
		name string
		fn   func(context.Context, *pgxpool.Pool) error
	}{
		{"participants", ensureParticipantsTable},
		{"volume", ensureVolumeTables},
		{"wallets", ensureWalletTables},
		{"plans", ensurePlanTables},
	}
	for _, s := range steps {
		if err := s.fn(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure %s schema: %w", s.name, err)
		}
		log.Debug("schema ensured", "part", s.name)
	}

	Conn = pool
	return pool, nil
}

// tableExists reports whether a table is present in the public schema.
func tableExists(ctx context.Context, pool *pgxpool.Pool, table string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.tables
            WHERE table_schema = 'public' AND table_name = $1
        )`, table).Scan(&exists)
	return exists, err
}

// ensureParticipantsTable creates participants with the weak sponsor reference.
// No uniqueness is imposed on (sponsor_username, side).
func ensureParticipantsTable(ctx context.Context, pool *pgxpool.Pool) error {
	exists, err := tableExists(ctx, pool, "participants")
	if err != nil || exists {
		return err
	}
	_, err = pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS participants (
            id UUID PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            email TEXT NULL,
            sponsor_username TEXT NULL,
            side TEXT NULL CHECK (side IN ('left','right')),
            is_active BOOLEAN NOT NULL DEFAULT FALSE,
            total_income NUMERIC(18,2) NOT NULL DEFAULT 0,
            total_withdrawals NUMERIC(18,2) NOT NULL DEFAULT 0,
            total_matched BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            CHECK ((sponsor_username IS NULL) = (side IS NULL))
        );
        CREATE INDEX IF NOT EXISTS idx_participants_sponsor ON participants(sponsor_username, created_at);
        CREATE INDEX IF NOT EXISTS idx_participants_active ON participants(id) WHERE is_active;
    `)
	return err
}

// ensureVolumeTables creates the BV counters and the contribution audit log.
func ensureVolumeTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS volume_accounts (
            participant_id UUID PRIMARY KEY REFERENCES participants(id) ON DELETE CASCADE,
            lifetime_left BIGINT NOT NULL DEFAULT 0,
            lifetime_right BIGINT NOT NULL DEFAULT 0,
            carry_left BIGINT NOT NULL DEFAULT 0 CHECK (carry_left >= 0),
            carry_right BIGINT NOT NULL DEFAULT 0 CHECK (carry_right >= 0),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            CHECK (lifetime_left >= carry_left AND lifetime_right >= carry_right)
        );
        CREATE TABLE IF NOT EXISTS bv_contributions (
            id UUID PRIMARY KEY,
            recipient_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
            source_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
            amount BIGINT NOT NULL CHECK (amount > 0),
            matched BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_bv_contributions_unmatched
            ON bv_contributions(recipient_id, created_at) WHERE NOT matched;
    `)
	return err
}

// ensureWalletTables creates wallets and their immutable transaction history.
func ensureWalletTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS wallets (
            participant_id UUID PRIMARY KEY REFERENCES participants(id) ON DELETE CASCADE,
            balance NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
            total_earned NUMERIC(18,2) NOT NULL DEFAULT 0,
            total_withdrawn NUMERIC(18,2) NOT NULL DEFAULT 0,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE TABLE IF NOT EXISTS wallet_transactions (
            id UUID PRIMARY KEY,
            participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
            type TEXT NOT NULL,
            amount NUMERIC(18,2) NOT NULL,
            balance_before NUMERIC(18,2) NOT NULL,
            balance_after NUMERIC(18,2) NOT NULL,
            reference_id TEXT NULL,
            metadata JSONB NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_wallet_transactions_participant
            ON wallet_transactions(participant_id, created_at DESC);
    `)
	return err
}

// ensurePlanTables creates plans and the participant subscriptions.
func ensurePlanTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS plans (
            id UUID PRIMARY KEY,
            name TEXT NOT NULL,
            price NUMERIC(18,2) NOT NULL DEFAULT 0,
            bv_value NUMERIC(18,2) NOT NULL DEFAULT 0,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE TABLE IF NOT EXISTS plan_subscriptions (
            id UUID PRIMARY KEY,
            participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
            plan_id UUID NOT NULL REFERENCES plans(id),
            bv_value NUMERIC(18,2) NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            reference_id TEXT NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_plan_subscriptions_participant
            ON plan_subscriptions(participant_id, created_at DESC) WHERE is_active;
    `)
	return err
}
