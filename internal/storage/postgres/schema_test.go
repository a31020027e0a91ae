package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range schema {
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(schema[0]).WillReturnError(errors.New("permission denied"))

	err = Migrate(context.Background(), db)
	assert.ErrorContains(t, err, "migration step 1")
}

func TestSchema_ForeignKeys(t *testing.T) {
	var entries, transactions string
	for _, stmt := range schema {
		switch {
		case strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS journal_entries"):
			entries = stmt
		case strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS transactions"):
			transactions = stmt
		}
	}
	require.NotEmpty(t, entries)
	require.NotEmpty(t, transactions)

	assert.Contains(t, entries, "REFERENCES transactions(id) ON DELETE CASCADE",
		"entries go away with their transaction")
	assert.Contains(t, entries, "REFERENCES accounts(id) ON DELETE RESTRICT",
		"accounts with postings cannot be dropped")
	assert.Contains(t, transactions, "REFERENCES accounts(id) ON DELETE RESTRICT")
}
