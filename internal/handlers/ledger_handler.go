package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	mW "github.com/tallyledger/backend/internal/middleware"
	"github.com/tallyledger/backend/internal/models"
	"github.com/tallyledger/backend/internal/services"
)

const (
	maxBodyBytes   = 1_048_576
	maxImportBytes = 10 * maxBodyBytes
	dateLayout     = "2006-01-02"
)

type LedgerHandler struct {
	ledger    *services.DoubleLedgerService
	importer  *services.ImportService
	validator *services.ValidationHelper
}

func NewLedgerHandler(ledger *services.DoubleLedgerService, importer *services.ImportService) *LedgerHandler {
	return &LedgerHandler{
		ledger:    ledger,
		importer:  importer,
		validator: services.NewValidationHelper(),
	}
}

// RegisterRoutes mounts the ledger endpoints except bulk import. Callers wrap
// r with middleware.BusinessScope.
func (h *LedgerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/accounts", h.ListAccounts)
	r.Get("/accounts/{accountId}", h.GetAccount)

	r.Post("/transactions", h.RecordTransaction)
	r.Get("/transactions/{txId}", h.GetTransaction)
	r.Patch("/transactions/{txId}", h.UpdateTransaction)
	r.Delete("/transactions/{txId}", h.DeleteTransaction)
	r.Put("/transactions/{txId}/reconcile", h.Reconcile)
	r.Delete("/transactions/{txId}/reconcile", h.Unreconcile)

	r.Get("/integrity", h.VerifyIntegrity)
}

// RegisterImportRoutes mounts bulk import separately so it can run under a
// longer deadline than the other endpoints.
func (h *LedgerHandler) RegisterImportRoutes(r chi.Router) {
	r.Post("/transactions/import", h.ImportTransactions)
}

type RecordTransactionRequest struct {
	Date            string          `json:"date" validate:"required,datetime=2006-01-02"`
	Description     string          `json:"description" validate:"required,max=500"`
	Amount          decimal.Decimal `json:"amount" swaggertype:"string" example:"150.00"`
	Type            string          `json:"type" validate:"required,oneof=INCOME EXPENSE TRANSFER"`
	MainAccountID   string          `json:"mainAccountId" validate:"required"`
	ContraAccountID string          `json:"contraAccountId" validate:"required"`
	CategoryID      *string         `json:"categoryId,omitempty"`
	ReferenceNumber *string         `json:"referenceNumber,omitempty" validate:"omitempty,max=100"`
	Notes           *string         `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type ImportRowRequest struct {
	Date            string          `json:"date"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount" swaggertype:"string"`
	Type            string          `json:"type"`
	Account         string          `json:"account,omitempty"`
	ContraAccount   string          `json:"contraAccount,omitempty"`
	CategoryID      string          `json:"categoryId,omitempty"`
	ReferenceNumber string          `json:"referenceNumber,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

type ImportRequest struct {
	Rows []ImportRowRequest `json:"rows" validate:"required,min=1,max=10000"`
}

// ListAccounts returns the chart of accounts
// @Summary List accounts
// @Description Chart of accounts of the business with running balances
// @Tags accounts
// @Produce json
// @Param X-Business-ID header string true "Business ID"
// @Success 200 {array} models.Account
// @Router /accounts [get]
func (h *LedgerHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	businessID, _ := mW.BusinessID(r.Context())

	accounts, err := h.ledger.ListAccounts(r.Context(), businessID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// GetAccount returns one account
// @Summary Get account
// @Tags accounts
// @Produce json
// @Param X-Business-ID header string true "Business ID"
// @Param accountId path string true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{accountId} [get]
func (h *LedgerHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	businessID, _ := mW.BusinessID(r.Context())

	account, err := h.ledger.GetAccount(r.Context(), businessID, chi.URLParam(r, "accountId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// RecordTransaction records an income, expense or transfer
// @Summary Record a transaction
// @Description Creates the transaction and its balanced pair of journal entries
// @Tags transactions
// @Accept json
// @Produce json
// @Param X-Business-ID header string true "Business ID"
// @Param request body RecordTransactionRequest true "Transaction"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /transactions [post]
func (h *LedgerHandler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	businessID, _ := mW.BusinessID(r.Context())

	var req RecordTransactionRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	req.Type = normalizeType(req.Type)
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	date, _ := time.Parse(dateLayout, req.Date)

	tx, err := h.ledger.RecordTransaction(r.Context(), services.RecordTransactionParams{
		BusinessID:      businessID,
		Date:            date,
		Description:     req.Description,
		Amount:          req.Amount,
		Type:            models.TransactionType(req.Type),
		MainAccountID:   req.MainAccountID,
		ContraAccountID: req.ContraAccountID,
		CategoryID:      req.CategoryID,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// GetTransaction returns a transaction with its journal entries
// @Summary Get transaction
// @Tags transactions
// @Produce json
// @Param X-Business-ID header string true "Business ID"
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{txId} [get]
func (h *LedgerHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	businessID, _ := mW.BusinessID(r.Context())

	tx, err := h.ledger.GetTransaction(r.Context(), businessID, chi.URLParam(r, "txId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// UpdateTransaction edits description, category, reference or notes
// @Summary Update transaction details
// @Tags transactions
// @Accept json
// @Produce json
// @Param X-Business-ID header string true "Business ID"
// @Param txId path string true "Transaction ID"
// @Param request body models.TransactionUpdate true "Fields to change"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /transactions/{txId} [patch]
func (h *LedgerHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	businessID, _ := mW.BusinessID(r.Context())

	var req models.TransactionUpdate
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tx, err := h.ledger.UpdateTransaction(r.Context(), businessID, chi.URLParam(r, "txId"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// DeleteTransaction reverses and removes a transaction
// @Summary Delete transaction
// @Description Reverses the balance effect of the journal entries, then deletes them. Reconciled transactions are refused.
// @Tags transactions
// @Param X-Business-ID header string true "Business ID"
// @Param txId path string true "Transaction ID"
// @Success 204
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /transactions/{txId} [delete]
func (h *LedgerHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	businessID, _ := mW.BusinessID(r.Context())

	if err := h.ledger.DeleteTransaction(r.Context(), businessID, chi.URLParam(r, "txId")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reconcile marks a transaction as reconciled
// @Summary Reconcile transaction
// @Tags transactions
// @Produce json
// @Param X-Business-ID header string true "Business ID"
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{txId}/reconcile [put]
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.setReconciled(w, r, true)
}

// Unreconcile clears the reconciled mark
// @Summary Unreconcile transaction
// @Tags transactions
// @Produce json
// @Param X-Business-ID header string true "Business ID"
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{txId}/reconcile [delete]
func (h *LedgerHandler) Unreconcile(w http.ResponseWriter, r *http.Request) {
	h.setReconciled(w, r, false)
}

func (h *LedgerHandler) setReconciled(w http.ResponseWriter, r *http.Request, reconciled bool) {
	businessID, _ := mW.BusinessID(r.Context())

	tx, err := h.ledger.SetReconciled(r.Context(), businessID, chi.URLParam(r, "txId"), reconciled)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// ImportTransactions bulk imports transactions
// @Summary Bulk import
// @Description Accepts a JSON body with rows, or text/csv with a header line. Rows failing validation are reported, the rest are imported.
// @Tags transactions
// @Accept json
// @Accept text/csv
// @Produce json
// @Param X-Business-ID header string true "Business ID"
// @Param request body ImportRequest false "Rows to import"
// @Success 200 {object} services.ImportResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /transactions/import [post]
func (h *LedgerHandler) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	businessID, _ := mW.BusinessID(r.Context())

	var rows []services.ImportRow
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		parsed, err := services.ParseCSV(http.MaxBytesReader(w, r.Body, maxImportBytes))
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				services.SendErrorResponse(w, "Import file too large", http.StatusRequestEntityTooLarge, nil)
				return
			}
			services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
			return
		}
		rows = parsed
	} else {
		var req ImportRequest
		if !decodeJSON(w, r, &req, maxImportBytes) {
			return
		}
		if err := h.validator.ValidateStruct(&req); err != nil {
			services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
			return
		}
		rows = importRows(req.Rows)
	}

	result, err := h.importer.BulkImport(r.Context(), businessID, rows)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func importRows(reqs []ImportRowRequest) []services.ImportRow {
	rows := make([]services.ImportRow, len(reqs))
	for i, row := range reqs {
		date, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			rows[i] = services.InvalidImportRow(fmt.Errorf("invalid date %q, expected YYYY-MM-DD", row.Date))
			continue
		}
		rows[i] = services.ImportRow{
			Date:            date,
			Description:     row.Description,
			Amount:          row.Amount,
			Type:            models.TransactionType(normalizeType(row.Type)),
			Account:         row.Account,
			ContraAccount:   row.ContraAccount,
			CategoryID:      row.CategoryID,
			ReferenceNumber: row.ReferenceNumber,
			Notes:           row.Notes,
		}
	}
	return rows
}

// VerifyIntegrity recomputes balances from the journal
// @Summary Verify ledger integrity
// @Tags ledger
// @Produce json
// @Param X-Business-ID header string true "Business ID"
// @Success 200 {object} services.IntegrityReport
// @Router /integrity [get]
func (h *LedgerHandler) VerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	businessID, _ := mW.BusinessID(r.Context())

	report, err := h.ledger.VerifyBalances(r.Context(), businessID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func normalizeType(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case services.IsClientError(err):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case services.IsNotFound(err):
		services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case services.IsConflict(err):
		services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	default:
		log.Printf("[HTTP] Internal error: %v", err)
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}
