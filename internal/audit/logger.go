package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	Timestamp     time.Time       `json:"timestamp"`
	EventType     string          `json:"event_type"`
	BusinessID    string          `json:"business_id"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Details       any             `json:"details,omitempty"`
}

type Logger struct {
	out *log.Logger
}

// NewLogger writes through the standard logger when out is nil.
func NewLogger(out *log.Logger) *Logger {
	if out == nil {
		out = log.Default()
	}
	return &Logger{out: out}
}

func (a *Logger) LogPosting(businessID, transactionID string, amount decimal.Decimal, entryNumber string, accounts map[string]decimal.Decimal) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     "POSTING",
		BusinessID:    businessID,
		TransactionID: transactionID,
		Amount:        amount,
		Status:        "SUCCESS",
		Details: map[string]any{
			"entry_number": entryNumber,
			"deltas":       accounts,
		},
	})
}

func (a *Logger) LogReversal(businessID, transactionID string, amount decimal.Decimal, accounts map[string]decimal.Decimal) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     "REVERSAL",
		BusinessID:    businessID,
		TransactionID: transactionID,
		Amount:        amount,
		Status:        "SUCCESS",
		Details:       map[string]any{"deltas": accounts},
	})
}

func (a *Logger) LogError(businessID, transactionID, operation string, err error) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     operation,
		BusinessID:    businessID,
		TransactionID: transactionID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) LogOperation(businessID, transactionID, operation, details string) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     operation,
		BusinessID:    businessID,
		TransactionID: transactionID,
		Status:        "SUCCESS",
		Details:       map[string]string{"details": details},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	a.out.Printf("AUDIT: %s", string(data))
}
