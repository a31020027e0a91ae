package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tallyledger/backend/internal/models"
)

const csvDateLayout = "2006-01-02"

var csvColumns = []string{"date", "description", "amount", "type", "account", "contra_account", "category", "reference", "notes"}

// ImportCSV reads rows with a header line naming the columns date,
// description, amount, type, account, contra_account, category, reference
// and notes, and imports them with BulkImport. Only date, description, amount
// and type are mandatory columns.
func (s *ImportService) ImportCSV(ctx context.Context, businessID string, r io.Reader) (*ImportResult, error) {
	rows, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	return s.BulkImport(ctx, businessID, rows)
}

// ParseCSV converts CSV input into import rows. A malformed line becomes a
// row that fails validation with the parse error, so numbering is preserved.
func ParseCSV(r io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv input is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range csvColumns[:4] {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("csv header is missing the %q column", required)
		}
	}

	var rows []ImportRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rows = append(rows, InvalidImportRow(err))
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, parseRecord(record, columns))
	}
	return rows, nil
}

func parseRecord(record []string, columns map[string]int) ImportRow {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := ImportRow{
		Description:     field("description"),
		Type:            models.TransactionType(strings.ToUpper(field("type"))),
		Account:         field("account"),
		ContraAccount:   field("contra_account"),
		CategoryID:      field("category"),
		ReferenceNumber: field("reference"),
		Notes:           field("notes"),
	}

	date, err := time.Parse(csvDateLayout, field("date"))
	if err != nil {
		row.parseErr = fmt.Errorf("invalid date %q, expected YYYY-MM-DD", field("date"))
		return row
	}
	row.Date = date

	amount, err := decimal.NewFromString(strings.ReplaceAll(field("amount"), ",", ""))
	if err != nil {
		row.parseErr = fmt.Errorf("invalid amount %q", field("amount"))
		return row
	}
	row.Amount = amount
	return row
}

// InvalidImportRow stands in for an input row that could not be decoded, so
// the failure is reported under that row's number.
func InvalidImportRow(err error) ImportRow {
	return ImportRow{parseErr: err}
}
