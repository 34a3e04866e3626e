package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"claimauditor/models"
	"claimauditor/storage"
)

// StatementKind enumerates the three statement families the upstream
// provider exposes.
type StatementKind string

const (
	StatementIncome       StatementKind = "income"
	StatementCashFlow     StatementKind = "cash_flow"
	StatementBalanceSheet StatementKind = "balance_sheet"
)

// CompanyProfile is the result of Source.Profile.
type CompanyProfile struct {
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

// TranscriptRecord is the result of Source.Transcript.
type TranscriptRecord struct {
	Date time.Time `json:"date"`
	Text string    `json:"text"`
}

// Source is the External Source Adapter: HTTP fetch of company profiles,
// earnings-call transcripts, and periodic statements, fronted by a
// content-addressed disk cache and a filesystem transcript fallback.
// Grounded on fmp_client.go's FMPClient (base URL + API key + http.Client)
// generalized away from FMP-specific response shapes, with retry.go and
// circuitbreaker.go wrapping every call.
type Source struct {
	BaseURL               string
	APIKey                string
	HTTPClient            *http.Client
	Cache                 *storage.Cache
	Memo                  *Memo
	TranscriptFallbackDir string
	Retry                 RetryPolicy
	Breaker               *CircuitBreaker
	Limiter               *RateLimiter
}

// NewSource constructs a Source with sane defaults, matching FMPClient's
// 10-second timeout. The default rate limit (300/min, 10000/day) matches a
// typical paid FMP tier; callers on a stricter plan should overwrite
// Limiter after construction. Memo is left nil; callers that want response
// memoization set it explicitly via NewMemo, since it requires a Redis
// address the Source constructor has no opinion on.
func NewSource(baseURL, apiKey string, cache *storage.Cache, transcriptFallbackDir string) *Source {
	return &Source{
		BaseURL:               baseURL,
		APIKey:                apiKey,
		HTTPClient:            &http.Client{Timeout: 10 * time.Second},
		Cache:                 cache,
		TranscriptFallbackDir: transcriptFallbackDir,
		Retry:                 DefaultRetryPolicy(),
		Breaker:               NewCircuitBreaker(5, 30*time.Second),
		Limiter:               NewRateLimiter(300, 10000),
	}
}

// Profile fetches {name, sector} for ticker, or nil on absence.
func (s *Source) Profile(ctx context.Context, ticker string) (*CompanyProfile, error) {
	params := map[string]string{"ticker": ticker}
	body, err := s.fetch(ctx, "profile", params, fmt.Sprintf("%s/profile?symbol=%s&apikey=%s", s.BaseURL, ticker, s.APIKey))
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var results []CompanyProfile
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to decode profile response for %s: %w", ticker, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// Transcript fetches {date, text} for one earnings call, falling back to a
// local file named "{TICKER}_Q{quarter}_{year}.txt" under
// TranscriptFallbackDir when the provider has none.
func (s *Source) Transcript(ctx context.Context, ticker string, year, quarter int) (*TranscriptRecord, error) {
	params := map[string]string{"ticker": ticker, "year": strconv.Itoa(year), "quarter": strconv.Itoa(quarter)}
	url := fmt.Sprintf("%s/earnings-call-transcript?symbol=%s&year=%d&quarter=%d&apikey=%s",
		s.BaseURL, ticker, year, quarter, s.APIKey)

	body, err := s.fetch(ctx, "transcript", params, url)
	if err != nil {
		return nil, err
	}
	if body != nil {
		var results []TranscriptRecord
		if err := json.Unmarshal(body, &results); err == nil && len(results) > 0 {
			return &results[0], nil
		}
	}

	return s.transcriptFromFile(ticker, year, quarter)
}

func (s *Source) transcriptFromFile(ticker string, year, quarter int) (*TranscriptRecord, error) {
	name := fmt.Sprintf("%s_Q%d_%d.txt", strings.ToUpper(ticker), quarter, year)
	path := filepath.Join(s.TranscriptFallbackDir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("no transcript for %s %s and no fallback file at %s", ticker, models.QuarterLabel(year, quarter), path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read transcript fallback file %s: %w", path, err)
	}
	return &TranscriptRecord{Date: time.Now().UTC(), Text: string(data)}, nil
}

// Statements fetches up to limit quarterly records of kind for ticker, each
// tagged with its fiscal (year, quarter).
func (s *Source) Statements(ctx context.Context, ticker string, kind StatementKind, limit int) ([]PeriodFragment, error) {
	endpoint := statementEndpoints[kind]
	if endpoint == "" {
		return nil, fmt.Errorf("unknown statement kind: %s", kind)
	}

	params := map[string]string{"ticker": ticker, "kind": string(kind), "limit": strconv.Itoa(limit)}
	url := fmt.Sprintf("%s/%s?symbol=%s&period=quarter&limit=%d&apikey=%s", s.BaseURL, endpoint, ticker, limit, s.APIKey)

	body, err := s.fetch(ctx, "statements:"+string(kind), params, url)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var raw []map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s statements for %s: %w", kind, ticker, err)
	}

	fieldMap := providerFields[kind]
	fragments := make([]PeriodFragment, 0, len(raw))
	for _, rec := range raw {
		year, quarter, ok := parseFiscalPeriod(rec)
		if !ok {
			continue
		}
		frag := PeriodFragment{Year: year, Quarter: quarter, PeriodEnd: parsePeriodEnd(rec), Fields: map[string]float64{}}
		for providerName, canonical := range fieldMap {
			if v, ok := numericField(rec, providerName); ok {
				frag.Fields[canonical] = v
			}
		}
		fragments = append(fragments, frag)
	}
	return fragments, nil
}

func parsePeriodEnd(rec map[string]interface{}) time.Time {
	dateVal, _ := rec["date"].(string)
	if t, err := time.Parse("2006-01-02", dateVal); err == nil {
		return t
	}
	return time.Time{}
}

// fetch consults the Redis memo first, then the durable disk cache, then
// performs the HTTP request through the retry policy and circuit breaker,
// memoizing and caching a successful body. A permanent failure is logged
// and returned as nil, nil; a non-nil error means the circuit breaker is
// open, the rate limiter refused, transient failures exhausted the
// retries, or the body could not be read.
func (s *Source) fetch(ctx context.Context, label string, params map[string]string, url string) ([]byte, error) {
	key := storage.Key(label, params)
	if cached, ok := s.Memo.Get(ctx, key); ok {
		return cached, nil
	}
	if s.Cache != nil {
		if cached, ok, err := s.Cache.Get(key); err == nil && ok {
			s.Memo.Set(ctx, key, cached)
			return cached, nil
		}
	}

	if err := s.Breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}

	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
	}

	resp, err := s.Retry.Do(ctx, func(attempt int) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		return s.HTTPClient.Do(req)
	})
	if err != nil {
		s.Breaker.RecordFailure()
		if errors.Is(err, ErrPermanentFailure) {
			log.Printf("warning: %s request failed permanently: %v", label, err)
			return nil, nil
		}
		return nil, fmt.Errorf("%s request failed: %w", label, err)
	}
	defer resp.Body.Close()
	s.Breaker.RecordSuccess()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response body: %w", label, err)
	}

	if s.Cache != nil {
		if err := s.Cache.Put(key, body); err != nil {
			log.Printf("warning: failed to cache %s response: %v", label, err)
		}
	}
	s.Memo.Set(ctx, key, body)
	return body, nil
}

func parseFiscalPeriod(rec map[string]interface{}) (year, quarter int, ok bool) {
	periodVal, _ := rec["period"].(string)
	periodVal = strings.ToUpper(strings.TrimSpace(periodVal))
	if !strings.HasPrefix(periodVal, "Q") || len(periodVal) != 2 {
		return 0, 0, false
	}
	q, err := strconv.Atoi(periodVal[1:])
	if err != nil || q < 1 || q > 4 {
		return 0, 0, false
	}

	if fy, ok := rec["fiscalYear"]; ok {
		if y, ok := asInt(fy); ok {
			return y, q, true
		}
	}
	if dateVal, ok := rec["date"].(string); ok && len(dateVal) >= 4 {
		if y, err := strconv.Atoi(dateVal[:4]); err == nil {
			return y, q, true
		}
	}
	return 0, 0, false
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}

func numericField(rec map[string]interface{}, name string) (float64, bool) {
	v, present := rec[name]
	if !present || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

var statementEndpoints = map[StatementKind]string{
	StatementIncome:       "income-statement",
	StatementCashFlow:     "cash-flow-statement",
	StatementBalanceSheet: "balance-sheet-statement",
}

// providerFields maps each kind's upstream field names onto FinancialPeriod
// canonical names, since each provider uses its own field naming and
// callers need one internal schema regardless of source. Grounded on
// FMPRatiosTTM's JSON tag conventions in fmp_client.go.
var providerFields = map[StatementKind]map[string]string{
	StatementIncome: {
		"revenue":                               "revenue",
		"costOfRevenue":                         "cost_of_revenue",
		"grossProfit":                           "gross_profit",
		"operatingIncome":                       "operating_income",
		"operatingExpenses":                     "operating_expenses",
		"netIncome":                             "net_income",
		"epsBasic":                              "eps_basic",
		"epsDiluted":                            "eps_diluted",
		"ebitda":                                "ebitda",
		"researchAndDevelopmentExpenses":        "research_and_development",
		"sellingGeneralAndAdministrativeExpense": "selling_general_admin",
		"interestExpense":                       "interest_expense",
		"incomeTaxExpense":                      "income_tax_expense",
	},
	StatementCashFlow: {
		"operatingCashFlow":  "operating_cash_flow",
		"capitalExpenditure": "capital_expenditure",
		"freeCashFlow":       "free_cash_flow",
	},
	StatementBalanceSheet: {
		"totalAssets":            "total_assets",
		"totalLiabilities":       "total_liabilities",
		"totalDebt":              "total_debt",
		"cashAndCashEquivalents": "cash_and_equivalents",
		"totalStockholdersEquity": "shareholders_equity",
	},
}

// PeriodFragment is one statement kind's contribution to a fiscal quarter,
// keyed by canonical field name, merged by MergeFragments into a full
// FinancialPeriod.
type PeriodFragment struct {
	Year      int
	Quarter   int
	PeriodEnd time.Time
	Fields    map[string]float64
}

// MergeFragments combines income/cash-flow/balance-sheet fragments for the
// same company into one FinancialPeriod per (year, quarter).
func MergeFragments(companyID int64, fragments ...[]PeriodFragment) []models.FinancialPeriod {
	byPeriod := map[[2]int]*models.FinancialPeriod{}
	order := [][2]int{}

	for _, group := range fragments {
		for _, frag := range group {
			key := [2]int{frag.Year, frag.Quarter}
			p, ok := byPeriod[key]
			if !ok {
				p = &models.FinancialPeriod{CompanyID: companyID, Year: frag.Year, Quarter: frag.Quarter}
				byPeriod[key] = p
				order = append(order, key)
			}
			if p.PeriodEnd.IsZero() && !frag.PeriodEnd.IsZero() {
				p.PeriodEnd = frag.PeriodEnd
			}
			applyFields(p, frag.Fields)
		}
	}

	out := make([]models.FinancialPeriod, 0, len(order))
	for _, key := range order {
		out = append(out, *byPeriod[key])
	}
	return out
}

func applyFields(p *models.FinancialPeriod, fields map[string]float64) {
	for name, v := range fields {
		val := v
		switch name {
		case "revenue":
			p.Revenue = &val
		case "cost_of_revenue":
			p.CostOfRevenue = &val
		case "gross_profit":
			p.GrossProfit = &val
		case "operating_income":
			p.OperatingIncome = &val
		case "operating_expenses":
			p.OperatingExpenses = &val
		case "net_income":
			p.NetIncome = &val
		case "eps_basic":
			p.EPSBasic = &val
		case "eps_diluted":
			p.EPSDiluted = &val
		case "ebitda":
			p.EBITDA = &val
		case "research_and_development":
			p.ResearchAndDev = &val
		case "selling_general_admin":
			p.SellingGeneralAdmin = &val
		case "interest_expense":
			p.InterestExpense = &val
		case "income_tax_expense":
			p.IncomeTaxExpense = &val
		case "operating_cash_flow":
			p.OperatingCashFlow = &val
		case "capital_expenditure":
			p.CapitalExpenditure = &val
		case "free_cash_flow":
			p.FreeCashFlow = &val
		case "total_assets":
			p.TotalAssets = &val
		case "total_liabilities":
			p.TotalLiabilities = &val
		case "total_debt":
			p.TotalDebt = &val
		case "cash_and_equivalents":
			p.CashAndEquivalents = &val
		case "shareholders_equity":
			p.ShareholdersEquity = &val
		}
	}
}
