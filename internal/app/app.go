package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/tallyledger/backend/internal/audit"
	"github.com/tallyledger/backend/internal/config"
	"github.com/tallyledger/backend/internal/database"
	"github.com/tallyledger/backend/internal/events"
	"github.com/tallyledger/backend/internal/services"
	"github.com/tallyledger/backend/internal/storage/postgres"
)

// App holds the connections and services shared by the HTTP server and the
// ledgerctl commands.
type App struct {
	DB       *sql.DB
	Redis    *redis.Client
	Store    *postgres.Store
	Config   *config.LedgerConfig
	Ledger   *services.DoubleLedgerService
	Importer *services.ImportService

	closePublisher func() error
}

// Open connects to PostgreSQL and, when reachable, Redis. Without Redis the
// import lock falls back to an in-process mutex.
func Open(ctx context.Context) (*App, error) {
	db, err := database.InitDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	rdb := database.InitRedis(ctx)
	cfg := config.LoadLedgerConfig()
	publisher, closePublisher := events.NewPublisher(cfg, rdb)

	var locker services.Locker
	if rdb != nil {
		locker = services.NewRedisLocker(rdb)
	} else {
		locker = services.NewKeyedMutex()
	}

	store := postgres.NewStore(db)
	ledger := services.NewDoubleLedgerService(store, cfg, publisher, audit.NewLogger(nil))

	return &App{
		DB:             db,
		Redis:          rdb,
		Store:          store,
		Config:         cfg,
		Ledger:         ledger,
		Importer:       services.NewImportService(ledger, locker),
		closePublisher: closePublisher,
	}, nil
}

func (a *App) Close() {
	if err := a.closePublisher(); err != nil {
		log.Printf("[EVENTS] Failed to close publisher: %v", err)
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	a.DB.Close()
}
