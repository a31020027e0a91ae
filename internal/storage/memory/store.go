package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tallyledger/backend/internal/models"
	"github.com/tallyledger/backend/internal/storage"
)

// Store is an in-memory storage.Store. WithTx runs against a copy of the
// state and swaps it in only when fn succeeds, so a failed unit leaves no
// trace. Transactions are serialised by a single mutex.
type Store struct {
	mu     sync.Mutex
	state  *state
	faults map[string]error
}

type state struct {
	accounts     map[string]models.Account
	transactions map[string]models.Transaction
	entries      map[string][]models.JournalEntry // by transaction id
	counters     map[string]int64                 // by business id
}

func newState() *state {
	return &state{
		accounts:     make(map[string]models.Account),
		transactions: make(map[string]models.Transaction),
		entries:      make(map[string][]models.JournalEntry),
		counters:     make(map[string]int64),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = append([]models.JournalEntry(nil), v...)
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	return c
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{state: newState(), faults: make(map[string]error)}
}

// InjectFault makes the next call to the named operation (for example
// "IncrementBalance") fail with err.
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) WithTx(ctx context.Context, fn func(storage.Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(&view{store: s, state: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) direct() *view {
	return &view{store: s, state: s.state}
}

func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().GetAccount(ctx, id)
}

func (s *Store) ListAccounts(ctx context.Context, businessID string) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().ListAccounts(ctx, businessID)
}

func (s *Store) InsertAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().InsertAccount(ctx, account)
}

func (s *Store) IncrementBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().IncrementBalance(ctx, accountID, delta)
}

func (s *Store) ReserveEntryNumbers(ctx context.Context, businessID string, n int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().ReserveEntryNumbers(ctx, businessID, n)
}

func (s *Store) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().InsertTransaction(ctx, tx)
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().GetTransaction(ctx, id)
}

func (s *Store) GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().GetTransactionForUpdate(ctx, id)
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().UpdateTransaction(ctx, tx)
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().DeleteTransaction(ctx, id)
}

func (s *Store) InsertJournalEntries(ctx context.Context, entries []models.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().InsertJournalEntries(ctx, entries)
}

func (s *Store) ListJournalEntries(ctx context.Context, transactionID string) ([]models.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().ListJournalEntries(ctx, transactionID)
}

func (s *Store) DeleteJournalEntries(ctx context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().DeleteJournalEntries(ctx, transactionID)
}

func (s *Store) SumEntriesByAccount(ctx context.Context, businessID string) ([]models.EntryTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().SumEntriesByAccount(ctx, businessID)
}

// view implements storage.Ledger over one state. The caller holds store.mu.
type view struct {
	store *Store
	state *state
}

func (v *view) fault(op string) error {
	if err, ok := v.store.faults[op]; ok {
		delete(v.store.faults, op)
		return err
	}
	return nil
}

func (v *view) GetAccount(_ context.Context, id string) (*models.Account, error) {
	if err := v.fault("GetAccount"); err != nil {
		return nil, err
	}
	a, ok := v.state.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

func (v *view) ListAccounts(_ context.Context, businessID string) ([]models.Account, error) {
	if err := v.fault("ListAccounts"); err != nil {
		return nil, err
	}
	accounts := []models.Account{}
	for _, a := range v.state.accounts {
		if a.BusinessID == businessID {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

func (v *view) InsertAccount(_ context.Context, account *models.Account) error {
	if err := v.fault("InsertAccount"); err != nil {
		return err
	}
	if err := account.Validate(); err != nil {
		return err
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if _, exists := v.state.accounts[account.ID]; exists {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	for _, a := range v.state.accounts {
		if a.BusinessID == account.BusinessID && a.Code == account.Code {
			return fmt.Errorf("account code %s already exists for business %s", account.Code, account.BusinessID)
		}
	}
	now := time.Now()
	account.CreatedAt, account.UpdatedAt = now, now
	v.state.accounts[account.ID] = *account
	return nil
}

func (v *view) IncrementBalance(_ context.Context, accountID string, delta decimal.Decimal) error {
	if err := v.fault("IncrementBalance"); err != nil {
		return err
	}
	a, ok := v.state.accounts[accountID]
	if !ok {
		return storage.ErrNotFound
	}
	a.CurrentBalance = a.CurrentBalance.Add(delta)
	a.UpdatedAt = time.Now()
	v.state.accounts[accountID] = a
	return nil
}

func (v *view) ReserveEntryNumbers(_ context.Context, businessID string, n int) (int64, error) {
	if err := v.fault("ReserveEntryNumbers"); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("reserve entry numbers: n must be positive, got %d", n)
	}
	last, ok := v.state.counters[businessID]
	if !ok {
		last = v.maxEntryNumber(businessID)
	}
	v.state.counters[businessID] = last + int64(n)
	return last + 1, nil
}

// maxEntryNumber seeds a counter from entries written before it existed.
func (v *view) maxEntryNumber(businessID string) int64 {
	var max int64
	for _, entries := range v.state.entries {
		for _, e := range entries {
			if e.BusinessID != businessID {
				continue
			}
			if n, err := models.ParseEntryNumber(e.EntryNumber); err == nil && n > max {
				max = n
			}
		}
	}
	return max
}

func (v *view) InsertTransaction(_ context.Context, tx *models.Transaction) error {
	if err := v.fault("InsertTransaction"); err != nil {
		return err
	}
	if _, exists := v.state.transactions[tx.ID]; exists {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	if _, ok := v.state.accounts[tx.LedgerAccountID]; !ok {
		return fmt.Errorf("transaction %s: ledger account %s does not exist", tx.ID, tx.LedgerAccountID)
	}
	stored := *tx
	stored.JournalEntries = nil
	v.state.transactions[tx.ID] = stored
	return nil
}

func (v *view) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	if err := v.fault("GetTransaction"); err != nil {
		return nil, err
	}
	tx, ok := v.state.transactions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	tx.JournalEntries = append([]models.JournalEntry(nil), v.state.entries[id]...)
	return &tx, nil
}

// GetTransactionForUpdate needs no row lock: WithTx holds the store mutex for
// the whole unit of work.
func (v *view) GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	return v.GetTransaction(ctx, id)
}

func (v *view) UpdateTransaction(_ context.Context, tx *models.Transaction) error {
	if err := v.fault("UpdateTransaction"); err != nil {
		return err
	}
	existing, ok := v.state.transactions[tx.ID]
	if !ok {
		return storage.ErrNotFound
	}
	existing.Description = tx.Description
	existing.CategoryID = tx.CategoryID
	existing.ReferenceNumber = tx.ReferenceNumber
	existing.Notes = tx.Notes
	existing.IsReconciled = tx.IsReconciled
	existing.UpdatedAt = tx.UpdatedAt
	v.state.transactions[tx.ID] = existing
	return nil
}

func (v *view) DeleteTransaction(_ context.Context, id string) error {
	if err := v.fault("DeleteTransaction"); err != nil {
		return err
	}
	if _, ok := v.state.transactions[id]; !ok {
		return storage.ErrNotFound
	}
	if len(v.state.entries[id]) > 0 {
		return fmt.Errorf("transaction %s still has journal entries", id)
	}
	delete(v.state.transactions, id)
	delete(v.state.entries, id)
	return nil
}

func (v *view) InsertJournalEntries(_ context.Context, entries []models.JournalEntry) error {
	if err := v.fault("InsertJournalEntries"); err != nil {
		return err
	}
	for _, e := range entries {
		if _, ok := v.state.transactions[e.TransactionID]; !ok {
			return fmt.Errorf("journal entry %s: transaction %s does not exist", e.ID, e.TransactionID)
		}
		if _, ok := v.state.accounts[e.LedgerAccountID]; !ok {
			return fmt.Errorf("journal entry %s: account %s does not exist", e.ID, e.LedgerAccountID)
		}
	}
	for _, e := range entries {
		v.state.entries[e.TransactionID] = append(v.state.entries[e.TransactionID], e)
	}
	return nil
}

func (v *view) ListJournalEntries(_ context.Context, transactionID string) ([]models.JournalEntry, error) {
	if err := v.fault("ListJournalEntries"); err != nil {
		return nil, err
	}
	return append([]models.JournalEntry{}, v.state.entries[transactionID]...), nil
}

func (v *view) DeleteJournalEntries(_ context.Context, transactionID string) error {
	if err := v.fault("DeleteJournalEntries"); err != nil {
		return err
	}
	delete(v.state.entries, transactionID)
	return nil
}

func (v *view) SumEntriesByAccount(_ context.Context, businessID string) ([]models.EntryTotals, error) {
	if err := v.fault("SumEntriesByAccount"); err != nil {
		return nil, err
	}
	byAccount := make(map[string]*models.EntryTotals)
	for _, entries := range v.state.entries {
		for _, e := range entries {
			if e.BusinessID != businessID || !e.IsPosted {
				continue
			}
			t, ok := byAccount[e.LedgerAccountID]
			if !ok {
				t = &models.EntryTotals{AccountID: e.LedgerAccountID, Debits: decimal.Zero, Credits: decimal.Zero}
				byAccount[e.LedgerAccountID] = t
			}
			t.Debits = t.Debits.Add(e.DebitAmount)
			t.Credits = t.Credits.Add(e.CreditAmount)
			t.Lines++
		}
	}
	totals := make([]models.EntryTotals, 0, len(byAccount))
	for _, t := range byAccount {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].AccountID < totals[j].AccountID })
	return totals, nil
}

// Compile-time check
var _ storage.Store = (*Store)(nil)
