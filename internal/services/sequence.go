package services

import (
	"github.com/tallyledger/backend/internal/config"
	"github.com/tallyledger/backend/internal/models"
)

// EntryNumberFormat renders reserved counter values as entry numbers.
type EntryNumberFormat struct {
	Width  int
	Prefix string
}

func NewEntryNumberFormat(cfg *config.LedgerConfig) EntryNumberFormat {
	return EntryNumberFormat{Width: cfg.EntryNumberWidth, Prefix: cfg.EntryNumberPrefix}
}

func (f EntryNumberFormat) Format(seq int64) string {
	return models.FormatEntryNumber(seq, f.Width, f.Prefix)
}
