package accounts

import "github.com/cleared-dev/ledger/internal/model"

// DefaultChart returns the default chart of accounts for an entity type.
func DefaultChart(entityType string) []model.Account {
	switch entityType {
	case "llc_single_member", "sole_proprietor":
		return smallBusinessChart("Owner's Equity")
	case "corporation":
		return smallBusinessChart("Common Stock")
	default:
		return smallBusinessChart("Owner's Equity")
	}
}

func smallBusinessChart(equityName string) []model.Account {
	a := func(code, name string, typ model.AccountType) model.Account {
		return model.Account{Code: code, Name: name, Type: typ, IsActive: true}
	}
	return []model.Account{
		a("1000", "Cash", model.AccountTypeAsset),
		a("1100", "Bank", model.AccountTypeAsset),
		a("1200", "Accounts Receivable", model.AccountTypeAsset),
		a("2000", "Accounts Payable", model.AccountTypeLiability),
		a("2100", "Credit Card", model.AccountTypeLiability),
		a("2200", "Sales Tax Payable", model.AccountTypeLiability),
		a("3000", equityName, model.AccountTypeEquity),
		a("3100", "Retained Earnings", model.AccountTypeEquity),
		a("4000", "Sales Revenue", model.AccountTypeIncome),
		a("4100", "Service Revenue", model.AccountTypeIncome),
		a("4900", "Other Income", model.AccountTypeIncome),
		a("5000", "Operating Expenses", model.AccountTypeExpense),
		a("5100", "Advertising & Marketing", model.AccountTypeExpense),
		a("5200", "Software & SaaS", model.AccountTypeExpense),
		a("5300", "Office Supplies", model.AccountTypeExpense),
		a("5400", "Professional Services", model.AccountTypeExpense),
		a("5500", "Bank Fees", model.AccountTypeExpense),
	}
}
