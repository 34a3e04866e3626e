package database

import (
	"fmt"

	"claimauditor/models"
)

// UpsertFinancialPeriod inserts a FinancialPeriod keyed by (company, year,
// quarter), skipping when the unique key already exists.
func UpsertFinancialPeriod(p models.FinancialPeriod) (inserted bool, id int64, err error) {
	row := DB.QueryRow(`
		INSERT INTO financial_periods (
			company_id, year, quarter, period_end,
			revenue, cost_of_revenue, gross_profit, operating_income, operating_expenses,
			net_income, eps_basic, eps_diluted, ebitda, research_and_development,
			selling_general_admin, interest_expense, income_tax_expense,
			operating_cash_flow, capital_expenditure, free_cash_flow,
			total_assets, total_liabilities, total_debt, cash_and_equivalents, shareholders_equity
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17,
			$18, $19, $20,
			$21, $22, $23, $24, $25
		)
		ON CONFLICT (company_id, year, quarter) DO NOTHING
		RETURNING id
	`,
		p.CompanyID, p.Year, p.Quarter, p.PeriodEnd,
		p.Revenue, p.CostOfRevenue, p.GrossProfit, p.OperatingIncome, p.OperatingExpenses,
		p.NetIncome, p.EPSBasic, p.EPSDiluted, p.EBITDA, p.ResearchAndDev,
		p.SellingGeneralAdmin, p.InterestExpense, p.IncomeTaxExpense,
		p.OperatingCashFlow, p.CapitalExpenditure, p.FreeCashFlow,
		p.TotalAssets, p.TotalLiabilities, p.TotalDebt, p.CashAndEquivalents, p.ShareholdersEquity,
	)

	if scanErr := row.Scan(&id); scanErr != nil {
		if isNoRows(scanErr) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to upsert financial period for company %d %dQ%d: %w", p.CompanyID, p.Year, p.Quarter, scanErr)
	}
	return true, id, nil
}

// GetFinancialPeriod looks up a FinancialPeriod by (company, year, quarter),
// the lookup the Verification Engine's PeriodLookup interface is backed by.
func GetFinancialPeriod(companyID int64, year, quarter int) (models.FinancialPeriod, bool, error) {
	var p models.FinancialPeriod
	err := DB.Get(&p, `
		SELECT id, company_id, year, quarter, period_end,
			revenue, cost_of_revenue, gross_profit, operating_income, operating_expenses,
			net_income, eps_basic, eps_diluted, ebitda, research_and_development,
			selling_general_admin, interest_expense, income_tax_expense,
			operating_cash_flow, capital_expenditure, free_cash_flow,
			total_assets, total_liabilities, total_debt, cash_and_equivalents, shareholders_equity,
			created_at
		FROM financial_periods WHERE company_id = $1 AND year = $2 AND quarter = $3
	`, companyID, year, quarter)
	if err != nil {
		if isNoRows(err) {
			return models.FinancialPeriod{}, false, nil
		}
		return models.FinancialPeriod{}, false, fmt.Errorf("failed to get financial period: %w", err)
	}
	return p, true, nil
}

// PeriodRepo adapts the database package's GetFinancialPeriod to the
// verify.PeriodLookup interface, so the Verification Engine depends on an
// interface rather than this package directly.
type PeriodRepo struct{}

// Period implements verify.PeriodLookup.
func (PeriodRepo) Period(companyID int64, year, quarter int) (*models.FinancialPeriod, bool) {
	p, ok, err := GetFinancialPeriod(companyID, year, quarter)
	if err != nil || !ok {
		return nil, false
	}
	return &p, true
}
