package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tallyledger/backend/internal/models"
	"github.com/tallyledger/backend/internal/storage"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	*queries
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{queries: &queries{q: db}, db: db}
}

func (s *Store) WithTx(ctx context.Context, fn func(storage.Ledger) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type queries struct {
	q querier
}

const accountColumns = `id, business_id, code, name, type, COALESCE(sub_type, ''), normal_balance, current_balance, is_active, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.BusinessID, &a.Code, &a.Name, &a.Type, &a.SubType,
		&a.NormalBalance, &a.CurrentBalance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (q *queries) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return a, nil
}

func (q *queries) ListAccounts(ctx context.Context, businessID string) ([]models.Account, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE business_id = $1 ORDER BY code`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (q *queries) InsertAccount(ctx context.Context, account *models.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now()
	account.CreatedAt, account.UpdatedAt = now, now

	_, err := q.q.ExecContext(ctx, `
		INSERT INTO accounts (id, business_id, code, name, type, sub_type, normal_balance, current_balance, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		account.ID, account.BusinessID, account.Code, account.Name, account.Type, nullString(account.SubType),
		account.NormalBalance, account.CurrentBalance, account.IsActive, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert account %s: %w", account.Code, err)
	}
	return nil
}

func (q *queries) IncrementBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	result, err := q.q.ExecContext(ctx, `
		UPDATE accounts
		SET current_balance = current_balance + $1, updated_at = $2
		WHERE id = $3`,
		delta, time.Now(), accountID)
	if err != nil {
		return fmt.Errorf("increment balance of %s: %w", accountID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ReserveEntryNumbers advances the business row in entry_sequences. The row
// lock taken by the UPDATE (or the INSERT) is held until the surrounding
// transaction ends, so concurrent writers for one business queue up here.
func (q *queries) ReserveEntryNumbers(ctx context.Context, businessID string, n int) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("reserve entry numbers: n must be positive, got %d", n)
	}

	var last int64
	err := q.q.QueryRowContext(ctx, `
		UPDATE entry_sequences
		SET last_value = last_value + $2
		WHERE business_id = $1
		RETURNING last_value`,
		businessID, n).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		// First reservation for this business: seed from the trailing digits
		// of any entries that predate the counter, so prefixed numbers count
		// even when the prefix itself contains digits.
		err = q.q.QueryRowContext(ctx, `
			INSERT INTO entry_sequences (business_id, last_value)
			SELECT $1, COALESCE(MAX(CAST(substring(entry_number FROM '[0-9]+$') AS BIGINT)), 0) + $2
			FROM journal_entries
			WHERE business_id = $1
			ON CONFLICT (business_id) DO UPDATE SET last_value = entry_sequences.last_value + $2
			RETURNING last_value`,
			businessID, n).Scan(&last)
	}
	if err != nil {
		return 0, fmt.Errorf("reserve entry numbers for %s: %w", businessID, err)
	}
	return last - int64(n) + 1, nil
}

func (q *queries) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, business_id, date, description, amount, type, ledger_account_id, category_id, is_reconciled, reference_number, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		tx.ID, tx.BusinessID, tx.Date, tx.Description, tx.Amount, tx.Type, tx.LedgerAccountID,
		tx.CategoryID, tx.IsReconciled, tx.ReferenceNumber, tx.Notes, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (q *queries) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return q.getTransaction(ctx, id, false)
}

// GetTransactionForUpdate locks the header row so a concurrent reconcile
// cannot commit between the is_reconciled check and the write that follows.
func (q *queries) GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	return q.getTransaction(ctx, id, true)
}

func (q *queries) getTransaction(ctx context.Context, id string, forUpdate bool) (*models.Transaction, error) {
	query := `
		SELECT id, business_id, date, description, amount, type, ledger_account_id, category_id,
		       is_reconciled, reference_number, notes, created_at, updated_at
		FROM transactions
		WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		tx                          models.Transaction
		categoryID, reference, note sql.NullString
	)
	err := q.q.QueryRowContext(ctx, query, id).Scan(
		&tx.ID, &tx.BusinessID, &tx.Date, &tx.Description, &tx.Amount, &tx.Type, &tx.LedgerAccountID,
		&categoryID, &tx.IsReconciled, &reference, &note, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	tx.CategoryID = stringPtr(categoryID)
	tx.ReferenceNumber = stringPtr(reference)
	tx.Notes = stringPtr(note)

	entries, err := q.ListJournalEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	tx.JournalEntries = entries
	return &tx, nil
}

func (q *queries) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	result, err := q.q.ExecContext(ctx, `
		UPDATE transactions
		SET description = $1, category_id = $2, reference_number = $3, notes = $4, is_reconciled = $5, updated_at = $6
		WHERE id = $7`,
		tx.Description, tx.CategoryID, tx.ReferenceNumber, tx.Notes, tx.IsReconciled, tx.UpdatedAt, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (q *queries) DeleteTransaction(ctx context.Context, id string) error {
	result, err := q.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (q *queries) InsertJournalEntries(ctx context.Context, entries []models.JournalEntry) error {
	for _, e := range entries {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO journal_entries
			(id, business_id, transaction_id, ledger_account_id, date, entry_number, description, debit_amount, credit_amount, entry_type, is_posted, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			e.ID, e.BusinessID, e.TransactionID, e.LedgerAccountID, e.Date, e.EntryNumber, e.Description,
			e.DebitAmount, e.CreditAmount, e.EntryType, e.IsPosted, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert journal entry %s: %w", e.ID, err)
		}
	}
	return nil
}

func (q *queries) ListJournalEntries(ctx context.Context, transactionID string) ([]models.JournalEntry, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, business_id, transaction_id, ledger_account_id, date, entry_number, description,
		       debit_amount, credit_amount, entry_type, is_posted, created_at
		FROM journal_entries
		WHERE transaction_id = $1
		ORDER BY entry_number, debit_amount DESC`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list journal entries of %s: %w", transactionID, err)
	}
	defer rows.Close()

	entries := []models.JournalEntry{}
	for rows.Next() {
		var e models.JournalEntry
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.TransactionID, &e.LedgerAccountID, &e.Date, &e.EntryNumber,
			&e.Description, &e.DebitAmount, &e.CreditAmount, &e.EntryType, &e.IsPosted, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *queries) DeleteJournalEntries(ctx context.Context, transactionID string) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM journal_entries WHERE transaction_id = $1`, transactionID); err != nil {
		return fmt.Errorf("delete journal entries of %s: %w", transactionID, err)
	}
	return nil
}

func (q *queries) SumEntriesByAccount(ctx context.Context, businessID string) ([]models.EntryTotals, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT ledger_account_id, COALESCE(SUM(debit_amount), 0), COALESCE(SUM(credit_amount), 0), COUNT(*)
		FROM journal_entries
		WHERE business_id = $1 AND is_posted
		GROUP BY ledger_account_id
		ORDER BY ledger_account_id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("sum journal entries: %w", err)
	}
	defer rows.Close()

	totals := []models.EntryTotals{}
	for rows.Next() {
		var t models.EntryTotals
		if err := rows.Scan(&t.AccountID, &t.Debits, &t.Credits, &t.Lines); err != nil {
			return nil, fmt.Errorf("scan entry totals: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

var _ storage.Store = (*Store)(nil)
