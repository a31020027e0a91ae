package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyledger/backend/internal/models"
)

func TestValidationHelper_ImportRow(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid row", func(t *testing.T) {
		row := ImportRow{Description: "Sale", Amount: decimal.NewFromInt(10), Type: models.TransactionTypeIncome}
		assert.NoError(t, vh.ValidateStruct(&row))
	})

	t.Run("missing description and unknown type", func(t *testing.T) {
		row := ImportRow{Type: "REFUND"}

		err := vh.ValidateStruct(&row)
		require.Error(t, err)

		var validationErrors validator.ValidationErrors
		require.True(t, errors.As(err, &validationErrors))
		assert.Len(t, validationErrors, 2)
	})
}

func TestValidationHelper_TransactionUpdate(t *testing.T) {
	vh := NewValidationHelper()
	long := strings.Repeat("x", 501)

	err := vh.ValidateStruct(&models.TransactionUpdate{Description: &long})
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))
	assert.Equal(t, "Description", validationErrors[0].Field())
	assert.Equal(t, "max", validationErrors[0].Tag())

	assert.NoError(t, vh.ValidateStruct(&models.TransactionUpdate{}))
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Transaction not found", http.StatusNotFound, ErrNotFound)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Transaction not found", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("with wrapped validation errors", func(t *testing.T) {
		validationErr := NewValidationHelper().ValidateStruct(&ImportRow{Type: "REFUND"})
		require.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, fmt.Errorf("row 1: %w", validationErr))

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "Description")
		assert.Contains(t, response.Details, "Type")
	})
}
