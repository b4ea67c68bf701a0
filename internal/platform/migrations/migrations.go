// Package migrations applies the database schema. Statements are idempotent
// and run in order on startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS auction_parts (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		section_name  TEXT NOT NULL DEFAULT '',
		rarity_tier   INTEGER NOT NULL,
		part_value    DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_power   INTEGER NOT NULL DEFAULT 0,
		serial_number INTEGER NOT NULL DEFAULT 0,
		shiny         BOOLEAN NOT NULL DEFAULT FALSE,
		locked        BOOLEAN NOT NULL DEFAULT FALSE,
		owner_wallet  TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS auction_rounds (
		id                  BIGSERIAL PRIMARY KEY,
		status              TEXT NOT NULL,
		submission_ends_at  TIMESTAMPTZ NOT NULL,
		ends_at             TIMESTAMPTZ NOT NULL,
		part_id             TEXT REFERENCES auction_parts (id),
		current_highest_bid DOUBLE PRECISION NOT NULL DEFAULT 0,
		bid_count           INTEGER NOT NULL DEFAULT 0,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,

	// At most one round may be active at any time.
	`CREATE UNIQUE INDEX IF NOT EXISTS auction_rounds_single_active
		ON auction_rounds ((TRUE))
		WHERE status IN ('accepting_submissions', 'bidding')`,

	`CREATE TABLE IF NOT EXISTS auction_bids (
		id        TEXT PRIMARY KEY,
		round_id  BIGINT NOT NULL REFERENCES auction_rounds (id),
		wallet    TEXT NOT NULL,
		amount    DOUBLE PRECISION NOT NULL,
		placed_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS auction_bids_round
		ON auction_bids (round_id, placed_at)`,

	`CREATE TABLE IF NOT EXISTS auction_submissions (
		id           TEXT PRIMARY KEY,
		round_id     BIGINT NOT NULL REFERENCES auction_rounds (id),
		wallet       TEXT NOT NULL,
		part_id      TEXT NOT NULL REFERENCES auction_parts (id),
		rarity_tier  INTEGER NOT NULL,
		part_value   DOUBLE PRECISION NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		UNIQUE (round_id, wallet)
	)`,

	`CREATE TABLE IF NOT EXISTS auction_history (
		id            TEXT PRIMARY KEY,
		round_id      BIGINT NOT NULL UNIQUE REFERENCES auction_rounds (id),
		status        TEXT NOT NULL,
		final_price   DOUBLE PRECISION NOT NULL DEFAULT 0,
		winner_wallet TEXT NOT NULL DEFAULT '',
		seller_wallet TEXT NOT NULL DEFAULT '',
		part_name     TEXT NOT NULL DEFAULT '',
		section_name  TEXT NOT NULL DEFAULT '',
		total_power   INTEGER NOT NULL DEFAULT 0,
		serial_number INTEGER NOT NULL DEFAULT 0,
		shiny         BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS eth_lock_submissions (
		id                    TEXT PRIMARY KEY,
		wallet_address        TEXT NOT NULL UNIQUE,
		auth_user_id          TEXT NOT NULL DEFAULT '',
		tx_hash               TEXT NOT NULL DEFAULT '',
		chain_id              BIGINT NOT NULL DEFAULT 0,
		from_address          TEXT NOT NULL DEFAULT '',
		to_address            TEXT NOT NULL DEFAULT '',
		amount_wei            NUMERIC(78, 0),
		status                TEXT NOT NULL DEFAULT 'pending',
		verification_attempts INTEGER NOT NULL DEFAULT 0,
		block_number          BIGINT NOT NULL DEFAULT 0,
		receipt               JSONB,
		last_error            TEXT NOT NULL DEFAULT '',
		confirmed_at          TIMESTAMPTZ,
		created_at            TIMESTAMPTZ NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id         TEXT PRIMARY KEY,
		event      TEXT NOT NULL,
		payload    JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS audit_log_event
		ON audit_log (event, created_at)`,
}

// Apply runs every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
