package models

import (
	"fmt"
	"time"
)

// FinancialPeriod holds one fiscal quarter's statement data for a company.
// Every numeric field is optional — a nil pointer means the source omitted it.
// Created in Ingest; immutable.
type FinancialPeriod struct {
	ID        int64     `db:"id"`
	CompanyID int64     `db:"company_id"`
	Year      int       `db:"year"`
	Quarter   int       `db:"quarter"`
	PeriodEnd time.Time `db:"period_end"`

	// Income statement
	Revenue            *float64 `db:"revenue"`
	CostOfRevenue      *float64 `db:"cost_of_revenue"`
	GrossProfit        *float64 `db:"gross_profit"`
	OperatingIncome    *float64 `db:"operating_income"`
	OperatingExpenses  *float64 `db:"operating_expenses"`
	NetIncome          *float64 `db:"net_income"`
	EPSBasic           *float64 `db:"eps_basic"`
	EPSDiluted         *float64 `db:"eps_diluted"`
	EBITDA             *float64 `db:"ebitda"`
	ResearchAndDev     *float64 `db:"research_and_development"`
	SellingGeneralAdmin *float64 `db:"selling_general_admin"`
	InterestExpense    *float64 `db:"interest_expense"`
	IncomeTaxExpense   *float64 `db:"income_tax_expense"`

	// Cash flow
	OperatingCashFlow  *float64 `db:"operating_cash_flow"`
	CapitalExpenditure *float64 `db:"capital_expenditure"`
	FreeCashFlow       *float64 `db:"free_cash_flow"`

	// Balance sheet
	TotalAssets        *float64 `db:"total_assets"`
	TotalLiabilities   *float64 `db:"total_liabilities"`
	TotalDebt          *float64 `db:"total_debt"`
	CashAndEquivalents *float64 `db:"cash_and_equivalents"`
	ShareholdersEquity *float64 `db:"shareholders_equity"`

	CreatedAt time.Time `db:"created_at"`
}

// QuarterLabel formats the "Q{q} {year}" label used throughout the
// Discrepancy Analyzer to group claims by fiscal quarter.
func QuarterLabel(year, quarter int) string {
	return fmt.Sprintf("Q%d %d", quarter, year)
}

// PriorSequential returns the (year, quarter) immediately preceding this one,
// wrapping Q1 of year Y to Q4 of year Y-1.
func PriorSequential(year, quarter int) (int, int) {
	if quarter == 1 {
		return year - 1, 4
	}
	return year, quarter - 1
}

// PriorYear returns the (year, quarter) one fiscal year earlier, same quarter.
func PriorYear(year, quarter int) (int, int) {
	return year - 1, quarter
}
