package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerEventType string

const (
	EventTransactionRecorded   LedgerEventType = "transaction.recorded"
	EventTransactionDeleted    LedgerEventType = "transaction.deleted"
	EventTransactionReconciled LedgerEventType = "transaction.reconciled"
	EventImportCompleted       LedgerEventType = "import.completed"
)

// LedgerEvent is emitted after a ledger mutation has been committed.
type LedgerEvent struct {
	Type          LedgerEventType `json:"type"`
	BusinessID    string          `json:"businessId"`
	TransactionID string          `json:"transactionId,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Payload       map[string]any  `json:"payload,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}
