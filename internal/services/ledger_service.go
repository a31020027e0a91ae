package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tallyledger/backend/internal/audit"
	"github.com/tallyledger/backend/internal/config"
	"github.com/tallyledger/backend/internal/models"
	"github.com/tallyledger/backend/internal/storage"
)

type DoubleLedgerService struct {
	store     storage.Store
	cfg       *config.LedgerConfig
	numbers   EntryNumberFormat
	publisher EventPublisher
	audit     *audit.Logger
	now       func() time.Time
}

func NewDoubleLedgerService(store storage.Store, cfg *config.LedgerConfig, publisher EventPublisher, auditLogger *audit.Logger) *DoubleLedgerService {
	if cfg == nil {
		cfg = config.DefaultLedgerConfig()
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(nil)
	}
	return &DoubleLedgerService{
		store:     store,
		cfg:       cfg,
		numbers:   NewEntryNumberFormat(cfg),
		publisher: publisher,
		audit:     auditLogger,
		now:       time.Now,
	}
}

type RecordTransactionParams struct {
	BusinessID      string
	Date            time.Time
	Description     string
	Amount          decimal.Decimal
	Type            models.TransactionType
	MainAccountID   string
	ContraAccountID string
	CategoryID      *string
	ReferenceNumber *string
	Notes           *string
}

// RecordTransaction creates the transaction header, its two journal entries
// and both balance increments in one atomic unit.
func (s *DoubleLedgerService) RecordTransaction(ctx context.Context, p RecordTransactionParams) (*models.Transaction, error) {
	if err := validateAmount(p.Amount); err != nil {
		return nil, err
	}
	if !p.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTransactionType, p.Type)
	}
	if p.MainAccountID == p.ContraAccountID {
		return nil, &InvalidAccountError{AccountID: p.ContraAccountID, Reason: "contra account must differ from the main account"}
	}

	var recorded *models.Transaction
	var deltas map[string]decimal.Decimal
	err := s.store.WithTx(ctx, func(l storage.Ledger) error {
		main, err := s.resolveAccount(ctx, l, p.BusinessID, p.MainAccountID)
		if err != nil {
			return err
		}
		contra, err := s.resolveAccount(ctx, l, p.BusinessID, p.ContraAccountID)
		if err != nil {
			return err
		}
		if err := s.checkRoles(p.Type, contra); err != nil {
			return err
		}

		first, err := l.ReserveEntryNumbers(ctx, p.BusinessID, 1)
		if err != nil {
			return err
		}

		tx, entries := s.newPosting(p, s.numbers.Format(first))
		if err := l.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		if err := l.InsertJournalEntries(ctx, entries); err != nil {
			return err
		}

		accounts := map[string]*models.Account{main.ID: main, contra.ID: contra}
		deltas = make(map[string]decimal.Decimal, 2)
		for _, e := range entries {
			acc := accounts[e.LedgerAccountID]
			deltas[acc.ID] = deltas[acc.ID].Add(BalanceDelta(acc.NormalBalance, e.DebitAmount, e.CreditAmount))
		}
		if err := applyDeltas(ctx, l, deltas); err != nil {
			return err
		}

		tx.JournalEntries = entries
		recorded = tx
		return nil
	})
	if err != nil {
		s.audit.LogError(p.BusinessID, "", "RECORD", err)
		return nil, atomic("record transaction", err)
	}

	log.Printf("[LEDGER] Recorded %s transaction %s for business %s (entry %s, amount %s)",
		recorded.Type, recorded.ID, recorded.BusinessID, recorded.JournalEntries[0].EntryNumber, recorded.Amount)
	s.audit.LogPosting(recorded.BusinessID, recorded.ID, recorded.Amount, recorded.JournalEntries[0].EntryNumber, deltas)
	publish(ctx, s.publisher, models.LedgerEvent{
		Type:          models.EventTransactionRecorded,
		BusinessID:    recorded.BusinessID,
		TransactionID: recorded.ID,
		Amount:        recorded.Amount,
		Payload: map[string]any{
			"type":        recorded.Type,
			"entryNumber": recorded.JournalEntries[0].EntryNumber,
		},
		OccurredAt: s.now(),
	})
	return recorded, nil
}

// DeleteTransaction reverses the balance effect of a transaction's entries
// and removes the entries and header. Reconciled transactions are refused.
func (s *DoubleLedgerService) DeleteTransaction(ctx context.Context, businessID, transactionID string) error {
	var deleted *models.Transaction
	deltas := make(map[string]decimal.Decimal)
	err := s.store.WithTx(ctx, func(l storage.Ledger) error {
		tx, err := s.loadTransaction(ctx, l, businessID, transactionID, true)
		if err != nil {
			return err
		}
		if tx.IsReconciled {
			return ErrReconciledTransaction
		}

		for _, e := range tx.JournalEntries {
			acc, err := l.GetAccount(ctx, e.LedgerAccountID)
			if err != nil {
				return fmt.Errorf("load account %s: %w", e.LedgerAccountID, err)
			}
			deltas[acc.ID] = deltas[acc.ID].Add(ReverseDelta(acc.NormalBalance, e.DebitAmount, e.CreditAmount))
		}
		if err := applyDeltas(ctx, l, deltas); err != nil {
			return err
		}

		if err := l.DeleteJournalEntries(ctx, tx.ID); err != nil {
			return err
		}
		if err := l.DeleteTransaction(ctx, tx.ID); err != nil {
			return err
		}
		deleted = tx
		return nil
	})
	if err != nil {
		s.audit.LogError(businessID, transactionID, "DELETE", err)
		return atomic("delete transaction", err)
	}

	log.Printf("[LEDGER] Deleted transaction %s for business %s", deleted.ID, businessID)
	s.audit.LogReversal(businessID, deleted.ID, deleted.Amount, deltas)
	publish(ctx, s.publisher, models.LedgerEvent{
		Type:          models.EventTransactionDeleted,
		BusinessID:    businessID,
		TransactionID: deleted.ID,
		Amount:        deleted.Amount,
		OccurredAt:    s.now(),
	})
	return nil
}

// UpdateTransaction edits the non-financial fields of an unreconciled
// transaction.
func (s *DoubleLedgerService) UpdateTransaction(ctx context.Context, businessID, transactionID string, update models.TransactionUpdate) (*models.Transaction, error) {
	var updated *models.Transaction
	err := s.store.WithTx(ctx, func(l storage.Ledger) error {
		tx, err := s.loadTransaction(ctx, l, businessID, transactionID, true)
		if err != nil {
			return err
		}
		if tx.IsReconciled {
			return ErrReconciledTransaction
		}
		if update.Empty() {
			updated = tx
			return nil
		}

		update.Apply(tx)
		tx.UpdatedAt = s.now()
		if err := l.UpdateTransaction(ctx, tx); err != nil {
			return err
		}
		updated = tx
		return nil
	})
	if err != nil {
		return nil, atomic("update transaction", err)
	}
	s.audit.LogOperation(businessID, transactionID, "UPDATE", "non-financial fields updated")
	return updated, nil
}

// SetReconciled marks a transaction as matched against a bank statement, or
// clears the mark so it can be edited or deleted again.
func (s *DoubleLedgerService) SetReconciled(ctx context.Context, businessID, transactionID string, reconciled bool) (*models.Transaction, error) {
	var updated *models.Transaction
	changed := false
	err := s.store.WithTx(ctx, func(l storage.Ledger) error {
		tx, err := s.loadTransaction(ctx, l, businessID, transactionID, true)
		if err != nil {
			return err
		}
		updated = tx
		if tx.IsReconciled == reconciled {
			return nil
		}

		tx.IsReconciled = reconciled
		tx.UpdatedAt = s.now()
		changed = true
		return l.UpdateTransaction(ctx, tx)
	})
	if err != nil {
		return nil, atomic("reconcile transaction", err)
	}

	if changed {
		log.Printf("[LEDGER] Transaction %s reconciled=%t", transactionID, reconciled)
		s.audit.LogOperation(businessID, transactionID, "RECONCILE", fmt.Sprintf("reconciled=%t", reconciled))
		publish(ctx, s.publisher, models.LedgerEvent{
			Type:          models.EventTransactionReconciled,
			BusinessID:    businessID,
			TransactionID: transactionID,
			Amount:        updated.Amount,
			Payload:       map[string]any{"reconciled": reconciled},
			OccurredAt:    s.now(),
		})
	}
	return updated, nil
}

func (s *DoubleLedgerService) GetTransaction(ctx context.Context, businessID, transactionID string) (*models.Transaction, error) {
	return s.loadTransaction(ctx, s.store, businessID, transactionID, false)
}

func (s *DoubleLedgerService) ListAccounts(ctx context.Context, businessID string) ([]models.Account, error) {
	return s.store.ListAccounts(ctx, businessID)
}

func (s *DoubleLedgerService) GetAccount(ctx context.Context, businessID, accountID string) (*models.Account, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && acc.BusinessID != businessID) {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return acc, err
}

type BalanceDiscrepancy struct {
	AccountID string          `json:"accountId"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Recorded  decimal.Decimal `json:"recorded"`
	Computed  decimal.Decimal `json:"computed"`
}

type IntegrityReport struct {
	BusinessID    string               `json:"businessId"`
	Accounts      int                  `json:"accounts"`
	TotalDebits   decimal.Decimal      `json:"totalDebits"`
	TotalCredits  decimal.Decimal      `json:"totalCredits"`
	Balanced      bool                 `json:"balanced"`
	Discrepancies []BalanceDiscrepancy `json:"discrepancies"`
}

// OK reports whether debits equal credits and every running balance matches
// its journal entries.
func (r *IntegrityReport) OK() bool {
	return r.Balanced && len(r.Discrepancies) == 0
}

// VerifyBalances recomputes every account balance of a business from its
// posted journal entries and compares it with the stored running balance.
func (s *DoubleLedgerService) VerifyBalances(ctx context.Context, businessID string) (*IntegrityReport, error) {
	accounts, err := s.store.ListAccounts(ctx, businessID)
	if err != nil {
		return nil, err
	}
	totals, err := s.store.SumEntriesByAccount(ctx, businessID)
	if err != nil {
		return nil, err
	}

	byAccount := make(map[string]models.EntryTotals, len(totals))
	report := &IntegrityReport{
		BusinessID:    businessID,
		Accounts:      len(accounts),
		Discrepancies: []BalanceDiscrepancy{},
	}
	for _, t := range totals {
		byAccount[t.AccountID] = t
		report.TotalDebits = report.TotalDebits.Add(t.Debits)
		report.TotalCredits = report.TotalCredits.Add(t.Credits)
	}
	report.Balanced = report.TotalDebits.Equal(report.TotalCredits)

	for _, acc := range accounts {
		t := byAccount[acc.ID]
		computed := BalanceDelta(acc.NormalBalance, t.Debits, t.Credits)
		if !computed.Equal(acc.CurrentBalance) {
			report.Discrepancies = append(report.Discrepancies, BalanceDiscrepancy{
				AccountID: acc.ID,
				Code:      acc.Code,
				Name:      acc.Name,
				Recorded:  acc.CurrentBalance,
				Computed:  computed,
			})
		}
	}

	if !report.OK() {
		log.Printf("[LEDGER] Integrity check failed for business %s: debits=%s credits=%s discrepancies=%d",
			businessID, report.TotalDebits, report.TotalCredits, len(report.Discrepancies))
	}
	return report, nil
}

func (s *DoubleLedgerService) resolveAccount(ctx context.Context, l storage.Ledger, businessID, accountID string) (*models.Account, error) {
	if accountID == "" {
		return nil, &InvalidAccountError{Reason: "account id is required"}
	}
	acc, err := l.GetAccount(ctx, accountID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &InvalidAccountError{AccountID: accountID, Reason: "account not found"}
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkAccount(acc, businessID); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *DoubleLedgerService) checkAccount(acc *models.Account, businessID string) error {
	if acc.BusinessID != businessID {
		return &InvalidAccountError{AccountID: acc.ID, Reason: "account does not belong to this business"}
	}
	if s.cfg.RejectInactiveAccounts && !acc.IsActive {
		return &InvalidAccountError{AccountID: acc.ID, Reason: "account is inactive"}
	}
	return nil
}

// checkRoles requires the contra account to grow on the side it is posted to:
// income credits its contra, expense debits it. Transfers are unconstrained.
func (s *DoubleLedgerService) checkRoles(typ models.TransactionType, contra *models.Account) error {
	if !s.cfg.StrictAccountRoles {
		return nil
	}
	var want models.NormalBalance
	switch typ {
	case models.TransactionTypeIncome:
		want = models.NormalBalanceCredit
	case models.TransactionTypeExpense:
		want = models.NormalBalanceDebit
	default:
		return nil
	}
	if contra.NormalBalance != want {
		return fmt.Errorf("%w: %s contra account %s (%s) has a %s normal balance",
			ErrAccountRoleMismatch, typ, contra.Code, contra.Type, contra.NormalBalance)
	}
	return nil
}

// loadTransaction reads a transaction of the business. Write paths pass
// forUpdate so the header stays locked until they commit.
func (s *DoubleLedgerService) loadTransaction(ctx context.Context, l storage.Ledger, businessID, transactionID string, forUpdate bool) (*models.Transaction, error) {
	get := l.GetTransaction
	if forUpdate {
		get = l.GetTransactionForUpdate
	}
	tx, err := get(ctx, transactionID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && tx.BusinessID != businessID) {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// newPosting builds the header and its debit/credit pair. Both lines share
// one entry number.
func (s *DoubleLedgerService) newPosting(p RecordTransactionParams, entryNumber string) (*models.Transaction, []models.JournalEntry) {
	now := s.now()
	tx := &models.Transaction{
		ID:              uuid.NewString(),
		BusinessID:      p.BusinessID,
		Date:            p.Date,
		Description:     p.Description,
		Amount:          p.Amount,
		Type:            p.Type,
		LedgerAccountID: p.MainAccountID,
		CategoryID:      p.CategoryID,
		ReferenceNumber: p.ReferenceNumber,
		Notes:           p.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	debitAccount, creditAccount := postingSides(p.Type, p.MainAccountID, p.ContraAccountID)
	line := func(accountID string, debit, credit decimal.Decimal) models.JournalEntry {
		return models.JournalEntry{
			ID:              uuid.NewString(),
			BusinessID:      p.BusinessID,
			TransactionID:   tx.ID,
			LedgerAccountID: accountID,
			Date:            p.Date,
			EntryNumber:     entryNumber,
			Description:     p.Description,
			DebitAmount:     debit,
			CreditAmount:    credit,
			EntryType:       models.EntryTypeStandard,
			IsPosted:        true,
			CreatedAt:       now,
		}
	}
	entries := []models.JournalEntry{
		line(debitAccount, p.Amount, decimal.Zero),
		line(creditAccount, decimal.Zero, p.Amount),
	}
	return tx, entries
}

// postingSides returns the debited and credited account for a transaction.
// Income and transfers debit the main account; expenses credit it.
func postingSides(typ models.TransactionType, mainID, contraID string) (debit, credit string) {
	if typ == models.TransactionTypeExpense {
		return contraID, mainID
	}
	return mainID, contraID
}

// applyDeltas increments balances in ascending account id order so that
// concurrent writers take row locks in the same order.
func applyDeltas(ctx context.Context, l storage.Ledger, deltas map[string]decimal.Decimal) error {
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		delta := deltas[id]
		if delta.IsZero() {
			continue
		}
		if err := l.IncrementBalance(ctx, id, delta); err != nil {
			return fmt.Errorf("increment balance of %s: %w", id, err)
		}
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return nil
}
