package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/tallyledger/backend/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Ledger is the set of reads and writes the engine performs. Implementations
// run each call either directly or inside the transaction handed to WithTx.
type Ledger interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context, businessID string) ([]models.Account, error)
	InsertAccount(ctx context.Context, account *models.Account) error

	// IncrementBalance adds delta to the account's current balance as a single
	// storage-level increment, never as a read-modify-write pair.
	IncrementBalance(ctx context.Context, accountID string, delta decimal.Decimal) error

	// ReserveEntryNumbers atomically advances the business counter by n and
	// returns the first reserved value. The reservation is released if the
	// surrounding transaction rolls back.
	ReserveEntryNumbers(ctx context.Context, businessID string, n int) (int64, error)

	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	// GetTransactionForUpdate is GetTransaction that also locks the header row
	// until the surrounding transaction ends. Write paths that decide on
	// is_reconciled read through it.
	GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *models.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error

	InsertJournalEntries(ctx context.Context, entries []models.JournalEntry) error
	ListJournalEntries(ctx context.Context, transactionID string) ([]models.JournalEntry, error)
	DeleteJournalEntries(ctx context.Context, transactionID string) error

	// SumEntriesByAccount totals the posted lines for every account of a business.
	SumEntriesByAccount(ctx context.Context, businessID string) ([]models.EntryTotals, error)
}

// Store is a Ledger that can group calls into one atomic unit.
type Store interface {
	Ledger

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(Ledger) error) error
}
