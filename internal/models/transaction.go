package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "INCOME"
	TransactionTypeExpense  TransactionType = "EXPENSE"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransfer:
		return true
	}
	return false
}

// Transaction is one economic event. It always owns exactly two journal
// entries whose debits and credits both equal Amount.
type Transaction struct {
	ID              string          `json:"id" db:"id"`
	BusinessID      string          `json:"businessId" db:"business_id"`
	Date            time.Time       `json:"date" db:"date"`
	Description     string          `json:"description" db:"description"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Type            TransactionType `json:"type" db:"type"`
	LedgerAccountID string          `json:"ledgerAccountId" db:"ledger_account_id"`
	CategoryID      *string         `json:"categoryId,omitempty" db:"category_id"`
	IsReconciled    bool            `json:"isReconciled" db:"is_reconciled"`
	ReferenceNumber *string         `json:"referenceNumber,omitempty" db:"reference_number"`
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	JournalEntries  []JournalEntry  `json:"journalEntries,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// TransactionUpdate carries the non-financial fields that may change after
// creation. Nil fields are left untouched.
type TransactionUpdate struct {
	Description     *string `json:"description,omitempty" validate:"omitempty,min=1,max=500"`
	CategoryID      *string `json:"categoryId,omitempty"`
	ReferenceNumber *string `json:"referenceNumber,omitempty" validate:"omitempty,max=100"`
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

func (u TransactionUpdate) Empty() bool {
	return u.Description == nil && u.CategoryID == nil && u.ReferenceNumber == nil && u.Notes == nil
}

// Apply copies the set fields onto tx.
func (u TransactionUpdate) Apply(tx *Transaction) {
	if u.Description != nil {
		tx.Description = *u.Description
	}
	if u.CategoryID != nil {
		tx.CategoryID = nullable(*u.CategoryID)
	}
	if u.ReferenceNumber != nil {
		tx.ReferenceNumber = nullable(*u.ReferenceNumber)
	}
	if u.Notes != nil {
		tx.Notes = nullable(*u.Notes)
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
