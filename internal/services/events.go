package services

import (
	"context"
	"log"

	"github.com/tallyledger/backend/internal/models"
)

// EventPublisher delivers ledger events after the ledger change is committed.
type EventPublisher interface {
	Publish(ctx context.Context, event models.LedgerEvent) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.LedgerEvent) error { return nil }

func publish(ctx context.Context, publisher EventPublisher, event models.LedgerEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		log.Printf("[EVENTS] Failed to publish %s for business %s: %v", event.Type, event.BusinessID, err)
	}
}
