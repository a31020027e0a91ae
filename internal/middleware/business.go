package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tallyledger/backend/internal/services"
)

type contextKey string

const businessIDKey contextKey = "businessID"

const BusinessHeader = "X-Business-ID"

// BusinessScope resolves the tenant of a request from the X-Business-ID
// header. Every ledger route runs inside one business.
func BusinessScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		businessID := strings.TrimSpace(r.Header.Get(BusinessHeader))
		if businessID == "" {
			services.SendErrorResponse(w, BusinessHeader+" header required", http.StatusBadRequest, nil)
			return
		}
		if len(businessID) > 64 {
			services.SendErrorResponse(w, "Invalid "+BusinessHeader+" header", http.StatusBadRequest, nil)
			return
		}

		ctx := WithBusinessID(r.Context(), businessID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithBusinessID(ctx context.Context, businessID string) context.Context {
	return context.WithValue(ctx, businessIDKey, businessID)
}

func BusinessID(ctx context.Context) (string, bool) {
	businessID, ok := ctx.Value(businessIDKey).(string)
	return businessID, ok && businessID != ""
}
