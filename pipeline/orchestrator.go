package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"claimauditor/analyze"
	"claimauditor/config"
	"claimauditor/database"
	"claimauditor/models"
	"claimauditor/services"
	"claimauditor/verify"
)

// defaultConcurrency bounds the number of in-flight I/O-bound operations
// (external fetches, extraction calls) an Ingest or Extract run drives at
// once, grounded on notification-service/consumer/sqs_consumer.go's
// bounded-worker style, simplified from its long-poll loop to a single
// semaphore-bounded fan-out since a pipeline run processes one fixed batch
// rather than an open-ended queue.
const defaultConcurrency = 4

// Orchestrator wires the External Source Adapter, Extraction Adapter,
// Verification Engine, and Discrepancy Analyzer to the repository layer,
// running each of the four stages as one bounded-concurrency batch.
type Orchestrator struct {
	Source      *services.Source
	Extractor   *services.ExtractionAdapter
	Verifier    *verify.Engine
	Notifier    Notifier
	Concurrency int
}

// NewOrchestrator constructs an Orchestrator with the default concurrency.
func NewOrchestrator(source *services.Source, extractor *services.ExtractionAdapter, verifier *verify.Engine, notifier Notifier) *Orchestrator {
	return &Orchestrator{
		Source:      source,
		Extractor:   extractor,
		Verifier:    verifier,
		Notifier:    notifier,
		Concurrency: defaultConcurrency,
	}
}

func (o *Orchestrator) concurrency() int {
	if o.Concurrency <= 0 {
		return defaultConcurrency
	}
	return o.Concurrency
}

// IngestSummary reports Ingest's outcome counts: companies touched and
// transcripts fetched or skipped.
type IngestSummary struct {
	CompaniesTouched   int
	TranscriptsFetched int
	TranscriptsSkipped int
	PeriodsUpserted    int
	Errors             []string
}

// Ingest fetches and persists company profiles, transcripts, and financial
// periods for every ticker in tickers across every target in quarters.
// Ingest of one ticker is independent of every other, so tickers are
// processed by a bounded worker pool; statements span a fixed 8-quarter
// window regardless of how many quarters are targeted for transcripts.
func (o *Orchestrator) Ingest(ctx context.Context, tickers []string, quarters []config.QuarterTarget) (IngestSummary, error) {
	started := time.Now()
	summary := IngestSummary{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.concurrency())

	for _, ticker := range tickers {
		ticker := ticker
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			o.ingestTicker(ctx, ticker, quarters, &summary, &mu)
		}()
	}
	wg.Wait()

	ok := len(summary.Errors) == 0
	if err := database.RecordPipelineRun("ingest", started, time.Now(), ok, summary); err != nil {
		log.Printf("warning: failed to record ingest pipeline run: %v", err)
	}
	if err := o.Notifier.Notify(ctx, "ingest", summary); err != nil {
		log.Printf("warning: failed to publish ingest notification: %v", err)
	}
	return summary, nil
}

func (o *Orchestrator) ingestTicker(ctx context.Context, ticker string, quarters []config.QuarterTarget, summary *IngestSummary, mu *sync.Mutex) {
	profile, err := o.Source.Profile(ctx, ticker)
	if err != nil {
		mu.Lock()
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: profile fetch failed: %v", ticker, err))
		mu.Unlock()
		return
	}
	name, sector := ticker, ""
	if profile != nil {
		name, sector = profile.Name, profile.Sector
	}

	companyID, err := database.UpsertCompany(ticker, name, sector)
	if err != nil {
		mu.Lock()
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: upsert company failed: %v", ticker, err))
		mu.Unlock()
		return
	}

	mu.Lock()
	summary.CompaniesTouched++
	mu.Unlock()

	for _, q := range quarters {
		tr, err := o.Source.Transcript(ctx, ticker, q.Year, q.Quarter)
		if err != nil {
			mu.Lock()
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s %s: transcript fetch failed: %v", ticker, models.QuarterLabel(q.Year, q.Quarter), err))
			mu.Unlock()
			continue
		}
		if tr == nil {
			mu.Lock()
			summary.TranscriptsSkipped++
			mu.Unlock()
			continue
		}
		inserted, _, err := database.UpsertTranscript(companyID, q.Year, q.Quarter, tr.Date, tr.Text)
		if err != nil {
			mu.Lock()
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s %s: upsert transcript failed: %v", ticker, models.QuarterLabel(q.Year, q.Quarter), err))
			mu.Unlock()
			continue
		}
		mu.Lock()
		if inserted {
			summary.TranscriptsFetched++
		} else {
			summary.TranscriptsSkipped++
		}
		mu.Unlock()
	}

	n, err := o.ingestPeriods(ctx, companyID, ticker)
	if err != nil {
		mu.Lock()
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: statements fetch failed: %v", ticker, err))
		mu.Unlock()
		return
	}
	mu.Lock()
	summary.PeriodsUpserted += n
	mu.Unlock()
}

// statementWindow is the number of trailing quarters of each statement kind
// fetched per ticker, enough history to cover prior-year and prior-quarter
// comparisons.
const statementWindow = 8

func (o *Orchestrator) ingestPeriods(ctx context.Context, companyID int64, ticker string) (int, error) {
	income, err := o.Source.Statements(ctx, ticker, services.StatementIncome, statementWindow)
	if err != nil {
		return 0, fmt.Errorf("income statements: %w", err)
	}
	cashFlow, err := o.Source.Statements(ctx, ticker, services.StatementCashFlow, statementWindow)
	if err != nil {
		return 0, fmt.Errorf("cash flow statements: %w", err)
	}
	balanceSheet, err := o.Source.Statements(ctx, ticker, services.StatementBalanceSheet, statementWindow)
	if err != nil {
		return 0, fmt.Errorf("balance sheet statements: %w", err)
	}

	periods := services.MergeFragments(companyID, income, cashFlow, balanceSheet)
	count := 0
	for _, p := range periods {
		if _, _, err := database.UpsertFinancialPeriod(p); err != nil {
			return count, fmt.Errorf("period %s: %w", models.QuarterLabel(p.Year, p.Quarter), err)
		}
		count++
	}
	return count, nil
}

// ExtractSummary reports Extract's outcome counts: claims extracted,
// invalid, and deduped.
type ExtractSummary struct {
	TranscriptsProcessed int
	ClaimsExtracted      int
	ClaimsInvalid        int
	ClaimsDeduped        int
	Errors               []string
}

// Extract runs the Extraction Adapter over every Transcript lacking Claims
// and persists the accepted drafts, bounded by the same worker pool as
// Ingest.
func (o *Orchestrator) Extract(ctx context.Context) (ExtractSummary, error) {
	started := time.Now()
	summary := ExtractSummary{}

	transcripts, err := database.ListTranscriptsWithoutClaims()
	if err != nil {
		return summary, fmt.Errorf("failed to list transcripts without claims: %w", err)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.concurrency())

	for _, t := range transcripts {
		t := t
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			o.extractTranscript(ctx, t, &summary, &mu)
		}()
	}
	wg.Wait()

	ok := len(summary.Errors) == 0
	if err := database.RecordPipelineRun("extract", started, time.Now(), ok, summary); err != nil {
		log.Printf("warning: failed to record extract pipeline run: %v", err)
	}
	if err := o.Notifier.Notify(ctx, "extract", summary); err != nil {
		log.Printf("warning: failed to publish extract notification: %v", err)
	}
	return summary, nil
}

func (o *Orchestrator) extractTranscript(ctx context.Context, t models.Transcript, summary *ExtractSummary, mu *sync.Mutex) {
	company, ok, err := database.GetCompanyByID(t.CompanyID)
	if err != nil || !ok {
		mu.Lock()
		summary.Errors = append(summary.Errors, fmt.Sprintf("transcript %d: company %d lookup failed: %v", t.ID, t.CompanyID, err))
		mu.Unlock()
		return
	}

	claims, stats, err := o.Extractor.Extract(ctx, t.Text, company.Ticker, t.Year, t.Quarter)
	if err != nil {
		mu.Lock()
		summary.Errors = append(summary.Errors, fmt.Sprintf("transcript %d (%s %s): extraction failed: %v", t.ID, company.Ticker, t.Label(), err))
		mu.Unlock()
		return
	}

	for i := range claims {
		claims[i].TranscriptID = t.ID
		if _, err := database.InsertClaim(claims[i]); err != nil {
			mu.Lock()
			summary.Errors = append(summary.Errors, fmt.Sprintf("transcript %d: insert claim failed: %v", t.ID, err))
			mu.Unlock()
			continue
		}
	}

	if persisted, err := database.ListClaimsByTranscript(t.ID); err == nil && len(persisted) != stats.Accepted {
		log.Printf("warning: transcript %d (%s %s): persisted %d claims, expected %d", t.ID, company.Ticker, t.Label(), len(persisted), stats.Accepted)
	}

	mu.Lock()
	summary.TranscriptsProcessed++
	summary.ClaimsExtracted += stats.Accepted
	summary.ClaimsInvalid += stats.Invalid
	summary.ClaimsDeduped += stats.Deduped
	mu.Unlock()
}

// VerifySummary reports Verify's outcome counts: verifications by verdict.
type VerifySummary struct {
	ClaimsProcessed int
	ByVerdict       map[models.Verdict]int
	Errors          []string
}

// Verify reconciles every Claim without a Verification against financial
// data and persists the result. Verify.Verify never errors on unresolvable
// data (it yields `unverifiable` instead), so this stage's only failure
// mode is a persistence or lookup error.
func (o *Orchestrator) Verify(ctx context.Context) (VerifySummary, error) {
	started := time.Now()
	summary := VerifySummary{ByVerdict: map[models.Verdict]int{}}

	claims, err := database.ListClaimsWithoutVerificationForVerify()
	if err != nil {
		return summary, fmt.Errorf("failed to list claims without verification: %w", err)
	}

	for _, c := range claims {
		v := o.Verifier.Verify(c.Claim, c.CompanyID, c.Year, c.Quarter)
		if _, err := database.InsertVerification(v); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("claim %d: insert verification failed: %v", c.Claim.ID, err))
			continue
		}
		summary.ClaimsProcessed++
		summary.ByVerdict[v.Verdict]++
	}

	ok := len(summary.Errors) == 0
	if err := database.RecordPipelineRun("verify", started, time.Now(), ok, summary); err != nil {
		log.Printf("warning: failed to record verify pipeline run: %v", err)
	}
	if err := o.Notifier.Notify(ctx, "verify", summary); err != nil {
		log.Printf("warning: failed to publish verify notification: %v", err)
	}
	return summary, nil
}

// AnalyzeSummary reports Analyze's outcome counts: patterns by kind.
type AnalyzeSummary struct {
	CompaniesAnalyzed int
	ByKind            map[models.PatternKind]int
	Errors            []string
}

// Analyze runs the Discrepancy Analyzer over every company with at least
// one verified claim and atomically replaces its Pattern set.
func (o *Orchestrator) Analyze(ctx context.Context) (AnalyzeSummary, error) {
	started := time.Now()
	summary := AnalyzeSummary{ByKind: map[models.PatternKind]int{}}

	companies, err := database.ListCompaniesWithVerifiedClaims()
	if err != nil {
		return summary, fmt.Errorf("failed to list companies with verified claims: %w", err)
	}

	for _, c := range companies {
		outcomes, err := database.ListVerifiedClaimsByCompany(c.ID)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("company %s: list verified claims failed: %v", c.Ticker, err))
			continue
		}

		byQuarter := groupByQuarter(outcomes)
		patterns := analyze.Analyze(byQuarter)
		for i := range patterns {
			patterns[i].CompanyID = c.ID
		}

		if err := database.ReplaceCompanyPatterns(c.ID, patterns); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("company %s: replace patterns failed: %v", c.Ticker, err))
			continue
		}

		summary.CompaniesAnalyzed++
		for _, p := range patterns {
			summary.ByKind[p.Kind]++
		}
	}

	ok := len(summary.Errors) == 0
	if err := database.RecordPipelineRun("analyze", started, time.Now(), ok, summary); err != nil {
		log.Printf("warning: failed to record analyze pipeline run: %v", err)
	}
	if err := o.Notifier.Notify(ctx, "analyze", summary); err != nil {
		log.Printf("warning: failed to publish analyze notification: %v", err)
	}
	return summary, nil
}

// groupByQuarter buckets a company's claim outcomes by their transcript's
// quarter label. Claim itself carries no quarter; the caller has already
// scoped outcomes to one company via ListVerifiedClaimsByCompany, so the
// quarter label is recovered from each claim's transcript lookup.
func groupByQuarter(outcomes []models.ClaimOutcome) analyze.QuarterClaims {
	byQuarter := analyze.QuarterClaims{}
	cache := map[int64]string{}
	for _, o := range outcomes {
		label, ok := cache[o.Claim.TranscriptID]
		if !ok {
			t, found, err := database.GetTranscriptByID(o.Claim.TranscriptID)
			if err != nil || !found {
				continue
			}
			label = t.Label()
			cache[o.Claim.TranscriptID] = label
		}
		byQuarter[label] = append(byQuarter[label], o)
	}
	return byQuarter
}
