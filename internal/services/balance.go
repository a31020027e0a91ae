package services

import (
	"github.com/shopspring/decimal"
	"github.com/tallyledger/backend/internal/models"
)

// BalanceDelta is the signed change a posting makes to an account's running
// balance, read from the account's stored normal balance.
func BalanceDelta(normal models.NormalBalance, debit, credit decimal.Decimal) decimal.Decimal {
	if normal == models.NormalBalanceDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// ReverseDelta undoes BalanceDelta for the same posting.
func ReverseDelta(normal models.NormalBalance, debit, credit decimal.Decimal) decimal.Decimal {
	return BalanceDelta(normal, credit, debit)
}
