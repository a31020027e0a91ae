package services

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyledger/backend/internal/audit"
	"github.com/tallyledger/backend/internal/config"
	"github.com/tallyledger/backend/internal/models"
	"github.com/tallyledger/backend/internal/storage"
	"github.com/tallyledger/backend/internal/storage/memory"
)

// failingTxStore fails the nth WithTx call without running it.
type failingTxStore struct {
	*memory.Store
	failOn int
	calls  int
}

func (s *failingTxStore) WithTx(ctx context.Context, fn func(storage.Ledger) error) error {
	s.calls++
	if s.calls == s.failOn {
		return errors.New("connection reset")
	}
	return s.Store.WithTx(ctx, fn)
}

func seedChart(t *testing.T, f *ledgerFixture) {
	t.Helper()
	f.addAccount(t, "acc-cash", "1000", "Cash", models.AccountTypeAsset, 0)
	f.addAccount(t, "acc-bank", "1100", "Bank Account", models.AccountTypeAsset, 0)
	f.addAccount(t, "acc-loan", "2100", "Loans Payable", models.AccountTypeLiability, 0)
	f.addAccount(t, "acc-sales", "4000", "Sales Revenue", models.AccountTypeRevenue, 0)
	f.addAccount(t, "acc-opex", "5000", "Operating Expenses", models.AccountTypeExpense, 0)
	f.addAccount(t, "acc-rent", "5100", "Rent Expense", models.AccountTypeExpense, 0)
}

func importRow(typ models.TransactionType, amount string, account, contra string) ImportRow {
	return ImportRow{
		Date:          time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		Description:   "imported " + strings.ToLower(string(typ)),
		Amount:        decimal.RequireFromString(amount),
		Type:          typ,
		Account:       account,
		ContraAccount: contra,
	}
}

func TestImportService_DefaultAccounts(t *testing.T) {
	f := newLedgerFixture(t, nil)
	seedChart(t, f)
	importer := NewImportService(f.service, nil)

	rows := []ImportRow{
		importRow(models.TransactionTypeIncome, "100", "", ""),
		importRow(models.TransactionTypeIncome, "100", "", ""),
		importRow(models.TransactionTypeIncome, "100", "", ""),
	}
	result, err := importer.BulkImport(context.Background(), testBusiness, rows)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Empty(t, result.Errors)
	assertBalance(t, 300, f.balance(t, "acc-sales"))
	assertBalance(t, 300, f.balance(t, "acc-cash"))
	assert.Contains(t, f.publisher.types(), models.EventImportCompleted)
}

func TestImportService_MatchesSequentialRecording(t *testing.T) {
	rows := []ImportRow{
		importRow(models.TransactionTypeIncome, "250.50", "1100", "4000"),
		importRow(models.TransactionTypeExpense, "99.99", "1000", "5100"),
		importRow(models.TransactionTypeTransfer, "1000", "acc-bank", "acc-loan"),
		importRow(models.TransactionTypeExpense, "40", "", ""),
		importRow(models.TransactionTypeIncome, "12.01", "1000", ""),
		importRow(models.TransactionTypeExpense, "300", "1100", "5100"),
	}

	cfg := config.DefaultLedgerConfig()
	cfg.ImportBatchSize = 4
	imported := newLedgerFixture(t, cfg)
	seedChart(t, imported)
	result, err := NewImportService(imported.service, nil).BulkImport(context.Background(), testBusiness, rows)
	require.NoError(t, err)
	require.Equal(t, len(rows), result.Succeeded, "errors: %v", result.Errors)

	sequential := newLedgerFixture(t, nil)
	seedChart(t, sequential)
	resolve := map[string]string{"": "", "1000": "acc-cash", "1100": "acc-bank", "4000": "acc-sales", "5000": "acc-opex", "5100": "acc-rent",
		"acc-bank": "acc-bank", "acc-loan": "acc-loan"}
	for _, row := range rows {
		main := resolve[row.Account]
		if main == "" {
			main = "acc-cash"
		}
		contra := resolve[row.ContraAccount]
		if contra == "" && row.Type == models.TransactionTypeIncome {
			contra = "acc-sales"
		}
		if contra == "" && row.Type == models.TransactionTypeExpense {
			contra = "acc-opex"
		}
		_, err := sequential.service.RecordTransaction(context.Background(), RecordTransactionParams{
			BusinessID: testBusiness, Date: row.Date, Description: row.Description, Amount: row.Amount,
			Type: row.Type, MainAccountID: main, ContraAccountID: contra,
		})
		require.NoError(t, err)
	}

	for _, id := range []string{"acc-cash", "acc-bank", "acc-loan", "acc-sales", "acc-opex", "acc-rent"} {
		want := sequential.balance(t, id)
		got := imported.balance(t, id)
		assert.True(t, want.Equal(got), "%s: sequential %s, imported %s", id, want, got)
	}

	report, err := imported.service.VerifyBalances(context.Background(), testBusiness)
	require.NoError(t, err)
	assert.True(t, report.OK(), "discrepancies: %+v", report.Discrepancies)
}

func TestImportService_InvalidRowsAreReported(t *testing.T) {
	f := newLedgerFixture(t, nil)
	seedChart(t, f)
	importer := NewImportService(f.service, nil)

	noDate := importRow(models.TransactionTypeIncome, "10", "", "")
	noDate.Date = time.Time{}
	rows := []ImportRow{
		importRow(models.TransactionTypeIncome, "10", "", ""),
		importRow(models.TransactionTypeIncome, "10", "9999", ""),
		importRow(models.TransactionTypeTransfer, "10", "1100", ""),
		importRow(models.TransactionTypeExpense, "0", "", ""),
		importRow("REFUND", "10", "", ""),
		noDate,
		importRow(models.TransactionTypeExpense, "5", "", ""),
	}
	result, err := importer.BulkImport(context.Background(), testBusiness, rows)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 5, result.Failed)
	require.Len(t, result.Errors, 5)
	assert.True(t, strings.HasPrefix(result.Errors[0], "row 2: "), result.Errors[0])
	assert.Contains(t, result.Errors[1], "contra account is required")
	assert.True(t, strings.HasPrefix(result.Errors[4], "row 6: "), result.Errors[4])

	assertBalance(t, 5, f.balance(t, "acc-cash"))
	assertBalance(t, 10, f.balance(t, "acc-sales"))
	assertBalance(t, 5, f.balance(t, "acc-opex"))
}

func TestImportService_FailedBatchRollsBackOnlyItself(t *testing.T) {
	cfg := config.DefaultLedgerConfig()
	cfg.ImportBatchSize = 2
	mem := memory.NewStore()
	store := &failingTxStore{Store: mem, failOn: 2}
	service := NewDoubleLedgerService(store, cfg, &recordingPublisher{}, audit.NewLogger(log.New(io.Discard, "", 0)))
	f := &ledgerFixture{service: service, store: mem, publisher: &recordingPublisher{}}
	seedChart(t, f)

	rows := make([]ImportRow, 5)
	for i := range rows {
		rows[i] = importRow(models.TransactionTypeIncome, "10", "", "")
	}
	result, err := NewImportService(service, nil).BulkImport(context.Background(), testBusiness, rows)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "rows 3-4: batch rolled back")
	assertBalance(t, 30, f.balance(t, "acc-cash"))
	assertBalance(t, 30, f.balance(t, "acc-sales"))

	next, err := mem.ReserveEntryNumbers(context.Background(), testBusiness, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), next, "the failed batch must not leave a gap")
}

func TestImportService_BatchTimeoutFailsBatch(t *testing.T) {
	cfg := config.DefaultLedgerConfig()
	cfg.ImportBatchTimeout = -time.Second
	f := newLedgerFixture(t, cfg)
	seedChart(t, f)

	result, err := NewImportService(f.service, nil).BulkImport(context.Background(), testBusiness, []ImportRow{
		importRow(models.TransactionTypeIncome, "10", "", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assertBalance(t, 0, f.balance(t, "acc-cash"))
}

func TestImportService_EntryNumbersContinueAcrossPaths(t *testing.T) {
	cfg := config.DefaultLedgerConfig()
	cfg.ImportBatchSize = 2
	f := newLedgerFixture(t, cfg)
	seedChart(t, f)
	ctx := context.Background()

	f.record(t, models.TransactionTypeIncome, "acc-cash", "acc-sales", 1)
	_, err := NewImportService(f.service, nil).BulkImport(ctx, testBusiness, []ImportRow{
		importRow(models.TransactionTypeIncome, "1", "", ""),
		importRow(models.TransactionTypeIncome, "1", "", ""),
		importRow(models.TransactionTypeIncome, "1", "", ""),
	})
	require.NoError(t, err)
	tx := f.record(t, models.TransactionTypeIncome, "acc-cash", "acc-sales", 1)

	assert.Equal(t, "000005", tx.JournalEntries[0].EntryNumber)
}

func TestImportService_OneImportPerBusiness(t *testing.T) {
	f := newLedgerFixture(t, nil)
	seedChart(t, f)
	locker := NewKeyedMutex()
	importer := NewImportService(f.service, locker)
	ctx := context.Background()

	unlock, err := locker.TryLock(ctx, "ledger:import:"+testBusiness, time.Minute)
	require.NoError(t, err)

	_, err = importer.BulkImport(ctx, testBusiness, []ImportRow{importRow(models.TransactionTypeIncome, "1", "", "")})
	assert.ErrorIs(t, err, ErrImportInProgress)
	assert.True(t, IsConflict(err))

	unlock()
	result, err := importer.BulkImport(ctx, testBusiness, []ImportRow{importRow(models.TransactionTypeIncome, "1", "", "")})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
}

func TestParseCSV(t *testing.T) {
	input := `Date,Description,Amount,Type,Account,Contra_Account,Category,Reference,Notes
2024-05-01,Coffee sales,"1,250.00",income,1000,4000,,INV-7,
2024-05-02,Rent,800,EXPENSE,1100,5100,,,May rent
05/03/2024,Bad date,10,INCOME,,,,,
2024-05-04,Bad amount,ten,INCOME,,,,,
`
	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, models.TransactionTypeIncome, rows[0].Type)
	assert.True(t, decimal.RequireFromString("1250").Equal(rows[0].Amount))
	assert.Equal(t, "INV-7", rows[0].ReferenceNumber)
	assert.Equal(t, "4000", rows[0].ContraAccount)
	assert.NoError(t, rows[0].parseErr)

	assert.Equal(t, "May rent", rows[1].Notes)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), rows[1].Date)

	assert.ErrorContains(t, rows[2].parseErr, "invalid date")
	assert.ErrorContains(t, rows[3].parseErr, "invalid amount")
}

func TestParseCSV_RequiresHeaderColumns(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("date,description,amount\n2024-01-01,x,1\n"))
	assert.ErrorContains(t, err, `"type"`)

	_, err = ParseCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestImportService_ImportCSV(t *testing.T) {
	f := newLedgerFixture(t, nil)
	seedChart(t, f)

	input := `date,description,amount,type,account,contra_account
2024-05-01,Coffee sales,150,INCOME,,
2024-05-02,Rent,80,EXPENSE,1000,5100
2024-05-03,Loan drawdown,500,TRANSFER,1100,2100
2024-05-04,Broken,abc,INCOME,,
`
	result, err := NewImportService(f.service, nil).ImportCSV(context.Background(), testBusiness, strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, strings.HasPrefix(result.Errors[0], "row 4: "), result.Errors[0])
	assertBalance(t, 70, f.balance(t, "acc-cash"))
	assertBalance(t, 80, f.balance(t, "acc-rent"))
	assertBalance(t, 500, f.balance(t, "acc-loan"))
}
