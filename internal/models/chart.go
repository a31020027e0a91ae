package models

import "github.com/shopspring/decimal"

// DefaultChart returns a starter chart of accounts for a new business. The
// cash, revenue and expense codes match the bulk import defaults.
func DefaultChart(businessID string) []Account {
	chart := []struct {
		code, name, subType string
		typ                 AccountType
	}{
		{"1000", "Cash", "CURRENT_ASSET", AccountTypeAsset},
		{"1100", "Bank Account", "CURRENT_ASSET", AccountTypeAsset},
		{"1200", "Accounts Receivable", "CURRENT_ASSET", AccountTypeAsset},
		{"1500", "Equipment", "FIXED_ASSET", AccountTypeAsset},
		{"2000", "Accounts Payable", "CURRENT_LIABILITY", AccountTypeLiability},
		{"2100", "Loans Payable", "LONG_TERM_LIABILITY", AccountTypeLiability},
		{"3000", "Owner's Capital", "OWNER_EQUITY", AccountTypeEquity},
		{"3100", "Retained Earnings", "RETAINED_EARNINGS", AccountTypeEquity},
		{"4000", "Sales Revenue", "OPERATING_REVENUE", AccountTypeRevenue},
		{"4100", "Service Revenue", "OPERATING_REVENUE", AccountTypeRevenue},
		{"4900", "Other Income", "OTHER_REVENUE", AccountTypeRevenue},
		{"5000", "Operating Expenses", "OPERATING_EXPENSE", AccountTypeExpense},
		{"5100", "Rent Expense", "OPERATING_EXPENSE", AccountTypeExpense},
		{"5200", "Salaries and Wages", "OPERATING_EXPENSE", AccountTypeExpense},
		{"5300", "Utilities", "OPERATING_EXPENSE", AccountTypeExpense},
		{"5900", "Bank Fees", "OTHER_EXPENSE", AccountTypeExpense},
	}

	accounts := make([]Account, 0, len(chart))
	for _, c := range chart {
		accounts = append(accounts, Account{
			BusinessID:     businessID,
			Code:           c.code,
			Name:           c.name,
			Type:           c.typ,
			SubType:        c.subType,
			NormalBalance:  NormalBalanceFor(c.typ),
			CurrentBalance: decimal.Zero,
			IsActive:       true,
		})
	}
	return accounts
}
