package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyledger/backend/internal/models"
	"github.com/tallyledger/backend/internal/storage"
)

func seedAccount(t *testing.T, s *Store, code string, typ models.AccountType) *models.Account {
	t.Helper()
	a := &models.Account{
		BusinessID:    "biz-1",
		Code:          code,
		Name:          "Account " + code,
		Type:          typ,
		NormalBalance: models.NormalBalanceFor(typ),
		IsActive:      true,
	}
	require.NoError(t, s.InsertAccount(context.Background(), a))
	return a
}

func TestStore_WithTxCommitsOnSuccess(t *testing.T) {
	s := NewStore()
	cash := seedAccount(t, s, "1000", models.AccountTypeAsset)
	ctx := context.Background()

	err := s.WithTx(ctx, func(l storage.Ledger) error {
		return l.IncrementBalance(ctx, cash.ID, decimal.NewFromInt(250))
	})
	require.NoError(t, err)

	got, err := s.GetAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(decimal.NewFromInt(250)))
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	cash := seedAccount(t, s, "1000", models.AccountTypeAsset)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(l storage.Ledger) error {
		if err := l.IncrementBalance(ctx, cash.ID, decimal.NewFromInt(250)); err != nil {
			return err
		}
		if _, err := l.ReserveEntryNumbers(ctx, "biz-1", 3); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.IsZero())

	first, err := s.ReserveEntryNumbers(ctx, "biz-1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first, "rolled back reservation must be released")
}

func TestStore_WithTxHonoursCancelledContext(t *testing.T) {
	s := NewStore()
	cash := seedAccount(t, s, "1000", models.AccountTypeAsset)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	err := s.WithTx(ctx, func(l storage.Ledger) error {
		if err := l.IncrementBalance(ctx, cash.ID, decimal.NewFromInt(10)); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got, _ := s.GetAccount(context.Background(), cash.ID)
	assert.True(t, got.CurrentBalance.IsZero())
}

func TestStore_ReserveEntryNumbers(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	first, err := s.ReserveEntryNumbers(ctx, "biz-1", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	next, err := s.ReserveEntryNumbers(ctx, "biz-1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), next)

	other, err := s.ReserveEntryNumbers(ctx, "biz-2", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), other, "counters are per business")

	_, err = s.ReserveEntryNumbers(ctx, "biz-1", 0)
	assert.Error(t, err)
}

func TestStore_ReserveEntryNumbersSeedsFromLegacyEntries(t *testing.T) {
	s := NewStore()
	cash := seedAccount(t, s, "1000", models.AccountTypeAsset)
	ctx := context.Background()

	tx := &models.Transaction{ID: "tx-legacy", BusinessID: "biz-1", LedgerAccountID: cash.ID, Amount: decimal.NewFromInt(1)}
	require.NoError(t, s.InsertTransaction(ctx, tx))
	require.NoError(t, s.InsertJournalEntries(ctx, []models.JournalEntry{
		{ID: "je-1", BusinessID: "biz-1", TransactionID: tx.ID, LedgerAccountID: cash.ID, EntryNumber: "JE-012", IsPosted: true},
		{ID: "je-2", BusinessID: "biz-1", TransactionID: tx.ID, LedgerAccountID: cash.ID, EntryNumber: "JE1-000009", IsPosted: true},
	}))

	first, err := s.ReserveEntryNumbers(ctx, "biz-1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(13), first)
}

func TestStore_InjectFault(t *testing.T) {
	s := NewStore()
	cash := seedAccount(t, s, "1000", models.AccountTypeAsset)
	ctx := context.Background()
	fault := errors.New("disk full")

	s.InjectFault("IncrementBalance", fault)
	assert.ErrorIs(t, s.IncrementBalance(ctx, cash.ID, decimal.NewFromInt(1)), fault)
	assert.NoError(t, s.IncrementBalance(ctx, cash.ID, decimal.NewFromInt(1)), "fault fires once")
}

func TestStore_InsertAccountRejectsWrongPolarity(t *testing.T) {
	s := NewStore()
	err := s.InsertAccount(context.Background(), &models.Account{
		BusinessID:    "biz-1",
		Code:          "4000",
		Name:          "Sales",
		Type:          models.AccountTypeRevenue,
		NormalBalance: models.NormalBalanceDebit,
	})
	assert.Error(t, err)
}

func TestStore_DeleteTransactionRequiresEntriesGone(t *testing.T) {
	s := NewStore()
	cash := seedAccount(t, s, "1000", models.AccountTypeAsset)
	ctx := context.Background()

	tx := &models.Transaction{ID: "tx-1", BusinessID: "biz-1", LedgerAccountID: cash.ID}
	require.NoError(t, s.InsertTransaction(ctx, tx))
	require.NoError(t, s.InsertJournalEntries(ctx, []models.JournalEntry{
		{ID: "je-1", BusinessID: "biz-1", TransactionID: tx.ID, LedgerAccountID: cash.ID, EntryNumber: "000001"},
	}))

	assert.Error(t, s.DeleteTransaction(ctx, tx.ID))
	require.NoError(t, s.DeleteJournalEntries(ctx, tx.ID))
	require.NoError(t, s.DeleteTransaction(ctx, tx.ID))

	_, err := s.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
