package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLedgerConfig_Defaults(t *testing.T) {
	assert.Equal(t, DefaultLedgerConfig(), LoadLedgerConfig())
}

func TestLoadLedgerConfig_FromEnv(t *testing.T) {
	t.Setenv("LEDGER_ENTRY_NUMBER_WIDTH", "3")
	t.Setenv("LEDGER_ENTRY_NUMBER_PREFIX", "JE-")
	t.Setenv("LEDGER_REJECT_INACTIVE_ACCOUNTS", "false")
	t.Setenv("LEDGER_STRICT_ACCOUNT_ROLES", "true")
	t.Setenv("LEDGER_IMPORT_BATCH_SIZE", "10")
	t.Setenv("LEDGER_IMPORT_BATCH_TIMEOUT", "5s")
	t.Setenv("LEDGER_EVENTS_DRIVER", "kafka")

	cfg := LoadLedgerConfig()
	assert.Equal(t, 3, cfg.EntryNumberWidth)
	assert.Equal(t, "JE-", cfg.EntryNumberPrefix)
	assert.False(t, cfg.RejectInactiveAccounts)
	assert.True(t, cfg.StrictAccountRoles)
	assert.Equal(t, 10, cfg.ImportBatchSize)
	assert.Equal(t, 5*time.Second, cfg.ImportBatchTimeout)
	assert.Equal(t, "kafka", cfg.EventsDriver)
}

func TestLoadLedgerConfig_IgnoresInvalidValues(t *testing.T) {
	t.Setenv("LEDGER_ENTRY_NUMBER_WIDTH", "0")
	t.Setenv("LEDGER_IMPORT_BATCH_SIZE", "lots")
	t.Setenv("LEDGER_STRICT_ACCOUNT_ROLES", "maybe")

	cfg := LoadLedgerConfig()
	assert.Equal(t, 6, cfg.EntryNumberWidth)
	assert.Equal(t, 50, cfg.ImportBatchSize)
	assert.False(t, cfg.StrictAccountRoles)
}

func TestLoadLedgerConfig_FromEnvFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"LEDGER_ENTRY_NUMBER_WIDTH=4\n"+
			"LEDGER_ENTRY_NUMBER_PREFIX=JE-\n"+
			"LEDGER_IMPORT_REQUEST_TIMEOUT=45m\n"+
			"LEDGER_EVENTS_DRIVER=none\n"), 0o644))
	t.Setenv("LEDGER_EVENTS_DRIVER", "kafka")

	InitViper(envFile)
	cfg := LoadLedgerConfig()

	assert.Equal(t, 4, cfg.EntryNumberWidth)
	assert.Equal(t, "JE-", cfg.EntryNumberPrefix)
	assert.Equal(t, 45*time.Minute, cfg.ImportRequestTimeout)
	assert.Equal(t, "kafka", cfg.EventsDriver, "the process environment wins over the file")
}
