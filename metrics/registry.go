// Package metrics implements the canonical metric registry: the closed set
// of metric names the Verification Engine can resolve, their mapping to
// FinancialPeriod fields (direct or derived), and the alias table that maps
// free-form transcript phrasing onto canonical names.
package metrics

import (
	"strings"

	"claimauditor/financial"
	"claimauditor/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var foldCase = cases.Lower(language.English)

// fieldFn extracts one numeric field from a FinancialPeriod.
type fieldFn func(p *models.FinancialPeriod) *float64

// direct maps a canonical metric name to exactly one FinancialPeriod field.
var direct = map[string]fieldFn{
	"revenue":                    func(p *models.FinancialPeriod) *float64 { return p.Revenue },
	"cost_of_revenue":            func(p *models.FinancialPeriod) *float64 { return p.CostOfRevenue },
	"gross_profit":               func(p *models.FinancialPeriod) *float64 { return p.GrossProfit },
	"operating_income":           func(p *models.FinancialPeriod) *float64 { return p.OperatingIncome },
	"operating_expenses":         func(p *models.FinancialPeriod) *float64 { return p.OperatingExpenses },
	"net_income":                 func(p *models.FinancialPeriod) *float64 { return p.NetIncome },
	"eps_basic":                  func(p *models.FinancialPeriod) *float64 { return p.EPSBasic },
	"eps_diluted":                func(p *models.FinancialPeriod) *float64 { return p.EPSDiluted },
	"ebitda":                     func(p *models.FinancialPeriod) *float64 { return p.EBITDA },
	"research_and_development":   func(p *models.FinancialPeriod) *float64 { return p.ResearchAndDev },
	"selling_general_admin":      func(p *models.FinancialPeriod) *float64 { return p.SellingGeneralAdmin },
	"interest_expense":           func(p *models.FinancialPeriod) *float64 { return p.InterestExpense },
	"income_tax_expense":         func(p *models.FinancialPeriod) *float64 { return p.IncomeTaxExpense },
	"operating_cash_flow":        func(p *models.FinancialPeriod) *float64 { return p.OperatingCashFlow },
	"capital_expenditure":        func(p *models.FinancialPeriod) *float64 { return p.CapitalExpenditure },
	"free_cash_flow":             func(p *models.FinancialPeriod) *float64 { return p.FreeCashFlow },
	"total_assets":               func(p *models.FinancialPeriod) *float64 { return p.TotalAssets },
	"total_liabilities":          func(p *models.FinancialPeriod) *float64 { return p.TotalLiabilities },
	"total_debt":                 func(p *models.FinancialPeriod) *float64 { return p.TotalDebt },
	"cash_and_equivalents":       func(p *models.FinancialPeriod) *float64 { return p.CashAndEquivalents },
	"shareholders_equity":        func(p *models.FinancialPeriod) *float64 { return p.ShareholdersEquity },
}

// derivedEntry specifies a margin metric as (numerator field, denominator
// field); its value is always expressed as a percent.
type derivedEntry struct {
	numerator   string
	denominator string
}

var derived = map[string]derivedEntry{
	"gross_margin":     {numerator: "gross_profit", denominator: "revenue"},
	"operating_margin": {numerator: "operating_income", denominator: "revenue"},
	"net_margin":       {numerator: "net_income", denominator: "revenue"},
}

// alias maps free-form, lower-cased, trimmed strings to canonical names.
var alias = map[string]string{
	"total revenue":           "revenue",
	"net revenue":             "revenue",
	"sales":                   "revenue",
	"top line":                "revenue",
	"revenues":                "revenue",
	"earnings per share":      "eps_diluted",
	"eps":                     "eps_diluted",
	"diluted eps":             "eps_diluted",
	"diluted earnings per share": "eps_diluted",
	"basic eps":               "eps_basic",
	"basic earnings per share": "eps_basic",
	"op margin":               "operating_margin",
	"operating profit margin": "operating_margin",
	"gross margin":            "gross_margin",
	"net margin":              "net_margin",
	"fcf":                     "free_cash_flow",
	"free cash flow":          "free_cash_flow",
	"capex":                   "capital_expenditure",
	"capital expenditures":    "capital_expenditure",
	"r&d":                     "research_and_development",
	"research and development": "research_and_development",
	"sg&a":                    "selling_general_admin",
	"selling, general and administrative": "selling_general_admin",
	"operating income":        "operating_income",
	"operating profit":        "operating_income",
	"net income":              "net_income",
	"bottom line":             "net_income",
	"gross profit":            "gross_profit",
	"cost of revenue":         "cost_of_revenue",
	"cost of goods sold":      "cost_of_revenue",
	"ebitda":                  "ebitda",
	"operating cash flow":     "operating_cash_flow",
	"cash from operations":    "operating_cash_flow",
	"total assets":            "total_assets",
	"total liabilities":       "total_liabilities",
	"total debt":              "total_debt",
	"cash and cash equivalents": "cash_and_equivalents",
	"shareholders equity":     "shareholders_equity",
	"stockholders equity":     "shareholders_equity",
}

// Normalize folds casing/whitespace and resolves a free-form metric name to
// its canonical form via the alias table. If no alias matches, the
// normalized (lower-cased, trimmed) input is returned unchanged.
func Normalize(name string) string {
	folded := strings.TrimSpace(foldCase.String(name))
	if canon, ok := alias[folded]; ok {
		return canon
	}
	if _, ok := direct[folded]; ok {
		return folded
	}
	if _, ok := derived[folded]; ok {
		return folded
	}
	return folded
}

// CanResolve reports whether name (after Normalize) has a direct or derived
// registry entry.
func CanResolve(name string) bool {
	canon := Normalize(name)
	if _, ok := direct[canon]; ok {
		return true
	}
	_, ok := derived[canon]
	return ok
}

// Resolve returns the numeric value of name against period, or nil if the
// metric is unresolvable or its backing field(s) are absent from period.
// capital_expenditure is returned as an absolute value since sources store
// it negative.
func Resolve(name string, period *models.FinancialPeriod) *float64 {
	canon := Normalize(name)

	if fn, ok := direct[canon]; ok {
		v := fn(period)
		if v == nil {
			return nil
		}
		if canon == "capital_expenditure" {
			abs := *v
			if abs < 0 {
				abs = -abs
			}
			return &abs
		}
		return v
	}

	if entry, ok := derived[canon]; ok {
		numFn, numOK := direct[entry.numerator]
		denFn, denOK := direct[entry.denominator]
		if !numOK || !denOK {
			return nil
		}
		num := numFn(period)
		den := denFn(period)
		if num == nil || den == nil {
			return nil
		}
		m, ok := financial.Margin(*num, *den)
		if !ok {
			return nil
		}
		return &m
	}

	return nil
}
