package events

import (
	"log"
	"strings"

	goredis "github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"github.com/tallyledger/backend/internal/config"
	"github.com/tallyledger/backend/internal/events/kafka"
	"github.com/tallyledger/backend/internal/events/redis"
	"github.com/tallyledger/backend/internal/services"
)

// NewPublisher picks the event transport named by cfg.EventsDriver. The
// returned close function is never nil.
func NewPublisher(cfg *config.LedgerConfig, rdb *goredis.Client) (services.EventPublisher, func() error) {
	noop := func() error { return nil }

	switch cfg.EventsDriver {
	case "kafka":
		viper.SetDefault("kafka.brokers", "localhost:9092")
		brokers := strings.Split(viper.GetString("kafka.brokers"), ",")
		publisher := kafka.NewPublisher(brokers, cfg.KafkaTopic)
		log.Printf("[EVENTS] Publishing to Kafka topic %s via %v", cfg.KafkaTopic, brokers)
		return publisher, publisher.Close
	case "redis":
		if rdb == nil {
			log.Printf("[EVENTS] Redis unavailable, ledger events are disabled")
			return services.NopPublisher{}, noop
		}
		viper.SetDefault("events.redis_queue", redis.DefaultQueue)
		queue := viper.GetString("events.redis_queue")
		log.Printf("[EVENTS] Publishing to Redis list %s", queue)
		return redis.NewPublisher(rdb, queue), noop
	default:
		return services.NopPublisher{}, noop
	}
}
