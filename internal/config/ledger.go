package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type LedgerConfig struct {
	EntryNumberWidth       int
	EntryNumberPrefix      string
	RejectInactiveAccounts bool
	StrictAccountRoles     bool
	DefaultCashCode        string
	DefaultRevenueCode     string
	DefaultExpenseCode     string
	ImportBatchSize        int
	ImportBatchTimeout     time.Duration
	ImportLockTTL          time.Duration
	ImportRequestTimeout   time.Duration
	EventsDriver           string
	KafkaTopic             string
}

func LoadLedgerConfig() *LedgerConfig {
	cfg := &LedgerConfig{
		EntryNumberWidth:       getEnvAsInt("LEDGER_ENTRY_NUMBER_WIDTH", 6),
		EntryNumberPrefix:      getEnv("LEDGER_ENTRY_NUMBER_PREFIX", ""),
		RejectInactiveAccounts: getEnvAsBool("LEDGER_REJECT_INACTIVE_ACCOUNTS", true),
		StrictAccountRoles:     getEnvAsBool("LEDGER_STRICT_ACCOUNT_ROLES", false),
		DefaultCashCode:        getEnv("LEDGER_DEFAULT_CASH_CODE", "1000"),
		DefaultRevenueCode:     getEnv("LEDGER_DEFAULT_REVENUE_CODE", "4000"),
		DefaultExpenseCode:     getEnv("LEDGER_DEFAULT_EXPENSE_CODE", "5000"),
		ImportBatchSize:        getEnvAsInt("LEDGER_IMPORT_BATCH_SIZE", 50),
		ImportBatchTimeout:     getEnvAsDuration("LEDGER_IMPORT_BATCH_TIMEOUT", 60*time.Second),
		ImportLockTTL:          getEnvAsDuration("LEDGER_IMPORT_LOCK_TTL", 10*time.Minute),
		ImportRequestTimeout:   getEnvAsDuration("LEDGER_IMPORT_REQUEST_TIMEOUT", 30*time.Minute),
		EventsDriver:           getEnv("LEDGER_EVENTS_DRIVER", "redis"),
		KafkaTopic:             getEnv("LEDGER_KAFKA_TOPIC", "ledger-events"),
	}
	if cfg.EntryNumberWidth < 1 {
		cfg.EntryNumberWidth = 6
	}
	if cfg.ImportBatchSize < 1 {
		cfg.ImportBatchSize = 50
	}
	return cfg
}

// DefaultLedgerConfig is the configuration with every variable unset.
func DefaultLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		EntryNumberWidth:       6,
		RejectInactiveAccounts: true,
		DefaultCashCode:        "1000",
		DefaultRevenueCode:     "4000",
		DefaultExpenseCode:     "5000",
		ImportBatchSize:        50,
		ImportBatchTimeout:     60 * time.Second,
		ImportLockTTL:          10 * time.Minute,
		ImportRequestTimeout:   30 * time.Minute,
		EventsDriver:           "redis",
		KafkaTopic:             "ledger-events",
	}
}

// lookup prefers the process environment and falls back to the values viper
// loaded from the .env file in InitViper.
func lookup(key string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return viper.GetString(key)
}

func getEnv(key, defaultVal string) string {
	if val := lookup(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := lookup(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := lookup(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := lookup(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
