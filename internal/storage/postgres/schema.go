package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		sub_type TEXT,
		normal_balance TEXT NOT NULL,
		current_balance NUMERIC(19,2) NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (business_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		date DATE NOT NULL,
		description TEXT NOT NULL,
		amount NUMERIC(19,2) NOT NULL CHECK (amount > 0),
		type TEXT NOT NULL,
		ledger_account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
		category_id TEXT,
		is_reconciled BOOLEAN NOT NULL DEFAULT FALSE,
		reference_number TEXT,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
		ledger_account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
		date DATE NOT NULL,
		entry_number TEXT NOT NULL,
		description TEXT NOT NULL,
		debit_amount NUMERIC(19,2) NOT NULL DEFAULT 0,
		credit_amount NUMERIC(19,2) NOT NULL DEFAULT 0,
		entry_type TEXT NOT NULL DEFAULT 'STANDARD',
		is_posted BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK ((debit_amount > 0 AND credit_amount = 0) OR (credit_amount > 0 AND debit_amount = 0))
	)`,
	`CREATE TABLE IF NOT EXISTS entry_sequences (
		business_id TEXT PRIMARY KEY,
		last_value BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_journal_entries_transaction ON journal_entries(transaction_id)`,
	`CREATE INDEX IF NOT EXISTS idx_journal_entries_business_number ON journal_entries(business_id, entry_number)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_business_date ON transactions(business_id, date)`,
}

// Migrate creates the ledger tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	log.Printf("[MIGRATE] Applied %d schema statements", len(schema))
	return nil
}
