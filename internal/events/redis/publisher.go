package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/tallyledger/backend/internal/models"
)

const DefaultQueue = "ledger:events"

// Publisher appends ledger events to a Redis list consumed by workers with
// BLPOP.
type Publisher struct {
	client redis.Cmdable
	queue  string
}

func NewPublisher(client redis.Cmdable, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{client: client, queue: queue}
}

func (p *Publisher) Publish(ctx context.Context, event models.LedgerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.RPush(ctx, p.queue, string(data)).Err()
}
