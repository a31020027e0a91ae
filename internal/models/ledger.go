package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalBalance is the side on which increases to an account are recorded.
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalBalanceFor returns the conventional polarity for an account type.
func NormalBalanceFor(t AccountType) NormalBalance {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return NormalBalanceDebit
	default:
		return NormalBalanceCredit
	}
}

type Account struct {
	ID             string          `json:"id" db:"id"`
	BusinessID     string          `json:"businessId" db:"business_id"`
	Code           string          `json:"code" db:"code"`
	Name           string          `json:"name" db:"name"`
	Type           AccountType     `json:"type" db:"type"`
	SubType        string          `json:"subType,omitempty" db:"sub_type"` // informational only
	NormalBalance  NormalBalance   `json:"normalBalance" db:"normal_balance"`
	CurrentBalance decimal.Decimal `json:"currentBalance" db:"current_balance"`
	IsActive       bool            `json:"isActive" db:"is_active"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

// Validate checks the fields fixed at creation time, including the
// normal-balance convention for the account type.
func (a *Account) Validate() error {
	if a.BusinessID == "" {
		return fmt.Errorf("account %q: business id is required", a.Code)
	}
	if a.Code == "" || a.Name == "" {
		return fmt.Errorf("account %q: code and name are required", a.ID)
	}
	if !a.Type.Valid() {
		return fmt.Errorf("account %q: unknown type %q", a.Code, a.Type)
	}
	if want := NormalBalanceFor(a.Type); a.NormalBalance != want {
		return fmt.Errorf("account %q: %s accounts must have a %s normal balance, got %q", a.Code, a.Type, want, a.NormalBalance)
	}
	return nil
}

type EntryType string

const (
	EntryTypeStandard  EntryType = "STANDARD"
	EntryTypeAdjusting EntryType = "ADJUSTING"
)

// JournalEntry is one debit or credit line posted to a single account.
type JournalEntry struct {
	ID              string          `json:"id" db:"id"`
	BusinessID      string          `json:"businessId" db:"business_id"`
	TransactionID   string          `json:"transactionId" db:"transaction_id"`
	LedgerAccountID string          `json:"ledgerAccountId" db:"ledger_account_id"`
	Date            time.Time       `json:"date" db:"date"`
	EntryNumber     string          `json:"entryNumber" db:"entry_number"`
	Description     string          `json:"description" db:"description"`
	DebitAmount     decimal.Decimal `json:"debitAmount" db:"debit_amount"`
	CreditAmount    decimal.Decimal `json:"creditAmount" db:"credit_amount"`
	EntryType       EntryType       `json:"entryType" db:"entry_type"`
	IsPosted        bool            `json:"isPosted" db:"is_posted"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}

type Category struct {
	ID         string `json:"id" db:"id"`
	BusinessID string `json:"businessId" db:"business_id"`
	Name       string `json:"name" db:"name"`
	Type       string `json:"type" db:"type"`
}

// EntryTotals aggregates the journal lines posted to one account.
type EntryTotals struct {
	AccountID string          `json:"accountId"`
	Debits    decimal.Decimal `json:"debits"`
	Credits   decimal.Decimal `json:"credits"`
	Lines     int             `json:"lines"`
}
