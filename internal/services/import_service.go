package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tallyledger/backend/internal/models"
	"github.com/tallyledger/backend/internal/storage"
)

// ImportRow is one transaction to import. Account and ContraAccount accept an
// account id or code; empty values fall back to the configured defaults.
type ImportRow struct {
	Date            time.Time              `json:"date"`
	Description     string                 `json:"description" validate:"required,max=500"`
	Amount          decimal.Decimal        `json:"amount"`
	Type            models.TransactionType `json:"type" validate:"required,oneof=INCOME EXPENSE TRANSFER"`
	Account         string                 `json:"account,omitempty" validate:"max=64"`
	ContraAccount   string                 `json:"contraAccount,omitempty" validate:"max=64"`
	CategoryID      string                 `json:"categoryId,omitempty"`
	ReferenceNumber string                 `json:"referenceNumber,omitempty" validate:"max=100"`
	Notes           string                 `json:"notes,omitempty" validate:"max=2000"`

	parseErr error
}

type ImportResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

type ImportService struct {
	ledger    *DoubleLedgerService
	locker    Locker
	validator *ValidationHelper
}

func NewImportService(ledger *DoubleLedgerService, locker Locker) *ImportService {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &ImportService{
		ledger:    ledger,
		locker:    locker,
		validator: NewValidationHelper(),
	}
}

type preparedRow struct {
	line   int
	params RecordTransactionParams
}

type accountIndex struct {
	byID   map[string]*models.Account
	byCode map[string]*models.Account
}

func (ix accountIndex) lookup(ref string) *models.Account {
	if acc, ok := ix.byID[ref]; ok {
		return acc
	}
	return ix.byCode[ref]
}

// BulkImport validates every row, then commits the valid ones in batches.
// Invalid rows and failed batches are reported in the result and never stop
// the remaining rows.
func (s *ImportService) BulkImport(ctx context.Context, businessID string, rows []ImportRow) (*ImportResult, error) {
	unlock, err := s.locker.TryLock(ctx, "ledger:import:"+businessID, s.ledger.cfg.ImportLockTTL)
	if errors.Is(err, ErrLockHeld) {
		return nil, ErrImportInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire import lock: %w", err)
	}
	defer unlock()

	accounts, err := s.ledger.store.ListAccounts(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	index := accountIndex{
		byID:   make(map[string]*models.Account, len(accounts)),
		byCode: make(map[string]*models.Account, len(accounts)),
	}
	for i := range accounts {
		index.byID[accounts[i].ID] = &accounts[i]
		index.byCode[accounts[i].Code] = &accounts[i]
	}

	result := &ImportResult{Errors: []string{}}
	valid := make([]preparedRow, 0, len(rows))
	for i, row := range rows {
		prepared, err := s.prepareRow(businessID, row, index)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		prepared.line = i + 1
		valid = append(valid, *prepared)
	}

	batchSize := s.ledger.cfg.ImportBatchSize
	for start := 0; start < len(valid); start += batchSize {
		end := min(start+batchSize, len(valid))
		batch := valid[start:end]

		if err := s.commitBatch(ctx, businessID, batch, index); err != nil {
			result.Failed += len(batch)
			result.Errors = append(result.Errors, fmt.Sprintf("rows %d-%d: batch rolled back: %v",
				batch[0].line, batch[len(batch)-1].line, err))
			log.Printf("[IMPORT] Batch %d-%d for business %s rolled back: %v",
				batch[0].line, batch[len(batch)-1].line, businessID, err)
			continue
		}
		result.Succeeded += len(batch)
	}

	log.Printf("[IMPORT] Business %s: %d succeeded, %d failed", businessID, result.Succeeded, result.Failed)
	s.ledger.audit.LogOperation(businessID, "", "IMPORT",
		fmt.Sprintf("succeeded=%d failed=%d", result.Succeeded, result.Failed))
	publish(ctx, s.ledger.publisher, models.LedgerEvent{
		Type:       models.EventImportCompleted,
		BusinessID: businessID,
		Payload: map[string]any{
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
		},
		OccurredAt: s.ledger.now(),
	})
	return result, nil
}

func (s *ImportService) prepareRow(businessID string, row ImportRow, index accountIndex) (*preparedRow, error) {
	if row.parseErr != nil {
		return nil, row.parseErr
	}
	if err := s.validator.ValidateStruct(&row); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if row.Date.IsZero() {
		return nil, errors.New("date is required")
	}
	if err := validateAmount(row.Amount); err != nil {
		return nil, err
	}

	cfg := s.ledger.cfg
	mainRef := row.Account
	if mainRef == "" {
		mainRef = cfg.DefaultCashCode
	}
	contraRef := row.ContraAccount
	if contraRef == "" {
		switch row.Type {
		case models.TransactionTypeIncome:
			contraRef = cfg.DefaultRevenueCode
		case models.TransactionTypeExpense:
			contraRef = cfg.DefaultExpenseCode
		default:
			return nil, fmt.Errorf("contra account is required for %s rows", row.Type)
		}
	}

	main := index.lookup(mainRef)
	if main == nil {
		return nil, &InvalidAccountError{AccountID: mainRef, Reason: "account not found"}
	}
	contra := index.lookup(contraRef)
	if contra == nil {
		return nil, &InvalidAccountError{AccountID: contraRef, Reason: "contra account not found"}
	}
	if main.ID == contra.ID {
		return nil, &InvalidAccountError{AccountID: contra.ID, Reason: "contra account must differ from the main account"}
	}
	if err := s.ledger.checkAccount(main, businessID); err != nil {
		return nil, err
	}
	if err := s.ledger.checkAccount(contra, businessID); err != nil {
		return nil, err
	}
	if err := s.ledger.checkRoles(row.Type, contra); err != nil {
		return nil, err
	}

	return &preparedRow{params: RecordTransactionParams{
		BusinessID:      businessID,
		Date:            row.Date,
		Description:     row.Description,
		Amount:          row.Amount,
		Type:            row.Type,
		MainAccountID:   main.ID,
		ContraAccountID: contra.ID,
		CategoryID:      optional(row.CategoryID),
		ReferenceNumber: optional(row.ReferenceNumber),
		Notes:           optional(row.Notes),
	}}, nil
}

// commitBatch writes one batch in its own atomic scope. Entry numbers are
// reserved for the whole batch at once and balances are incremented once per
// account with the netted delta.
func (s *ImportService) commitBatch(ctx context.Context, businessID string, batch []preparedRow, index accountIndex) error {
	ctx, cancel := context.WithTimeout(ctx, s.ledger.cfg.ImportBatchTimeout)
	defer cancel()

	err := s.ledger.store.WithTx(ctx, func(l storage.Ledger) error {
		first, err := l.ReserveEntryNumbers(ctx, businessID, len(batch))
		if err != nil {
			return err
		}

		deltas := make(map[string]decimal.Decimal)
		for i, row := range batch {
			tx, entries := s.ledger.newPosting(row.params, s.ledger.numbers.Format(first+int64(i)))
			if err := l.InsertTransaction(ctx, tx); err != nil {
				return fmt.Errorf("row %d: %w", row.line, err)
			}
			if err := l.InsertJournalEntries(ctx, entries); err != nil {
				return fmt.Errorf("row %d: %w", row.line, err)
			}
			for _, e := range entries {
				acc := index.byID[e.LedgerAccountID]
				deltas[acc.ID] = deltas[acc.ID].Add(BalanceDelta(acc.NormalBalance, e.DebitAmount, e.CreditAmount))
			}
		}
		return applyDeltas(ctx, l, deltas)
	})
	return atomic("import batch", err)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
