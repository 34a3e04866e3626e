package pipeline

import (
	"context"
	"testing"
	"time"

	"claimauditor/database"
	"claimauditor/models"
	"claimauditor/verify"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMock swaps database.DB for a sqlmock-backed handle and restores the
// original on test cleanup, mirroring database/sqlmock_test.go's helper
// (unexported there, so reimplemented here against the exported DB var).
func setupMock(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	orig := database.DB
	database.DB = sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() {
		database.DB = orig
		db.Close()
	})
	return mock
}

type fakeNotifier struct {
	stages []string
}

func (f *fakeNotifier) Notify(ctx context.Context, stage string, summary interface{}) error {
	f.stages = append(f.stages, stage)
	return nil
}

// fakePeriods is a minimal verify.PeriodLookup so Verify's test doesn't
// require a real financial_periods table round trip.
type fakePeriods struct {
	p *models.FinancialPeriod
}

func (f fakePeriods) Period(companyID int64, year, quarter int) (*models.FinancialPeriod, bool) {
	if f.p == nil {
		return nil, false
	}
	return f.p, true
}

func revenuePtr(v float64) *float64 { return &v }

func TestVerifyPersistsResultAndTalliesByVerdict(t *testing.T) {
	mock := setupMock(t)

	mock.ExpectQuery(`SELECT c.id, c.transcript_id`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "transcript_id", "speaker", "speaker_role", "claim_text",
			"metric", "metric_kind", "stated_value", "unit", "comparison_period",
			"is_gaap", "segment", "confidence", "context", "created_at",
			"company_id", "year", "quarter",
		}).AddRow(
			int64(1), int64(5), "CFO", "CFO", "Revenue was $100B",
			"revenue", "absolute", 100.0, "usd_billions", "none",
			true, nil, 0.9, "ctx", time.Now(),
			int64(7), 2025, 2,
		))
	mock.ExpectQuery(`INSERT INTO verifications`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	notifier := &fakeNotifier{}
	o := &Orchestrator{
		Verifier: verify.New(fakePeriods{p: &models.FinancialPeriod{ID: 1, Revenue: revenuePtr(100e9)}}),
		Notifier: notifier,
	}

	summary, err := o.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ClaimsProcessed)
	assert.Empty(t, summary.Errors)
	assert.Contains(t, notifier.stages, "verify")
}

func TestVerifyTalliesUnverifiableWhenMetricUnresolvable(t *testing.T) {
	mock := setupMock(t)

	mock.ExpectQuery(`SELECT c.id, c.transcript_id`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "transcript_id", "speaker", "speaker_role", "claim_text",
			"metric", "metric_kind", "stated_value", "unit", "comparison_period",
			"is_gaap", "segment", "confidence", "context", "created_at",
			"company_id", "year", "quarter",
		}).AddRow(
			int64(2), int64(5), "CFO", "CFO", "Synergy grew",
			"synergy_score", "absolute", 1.0, "ratio", "none",
			true, nil, 0.5, "ctx", time.Now(),
			int64(7), 2025, 2,
		))
	mock.ExpectQuery(`INSERT INTO verifications`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

	o := &Orchestrator{
		Verifier: verify.New(fakePeriods{}),
		Notifier: &fakeNotifier{},
	}

	summary, err := o.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ByVerdict[models.VerdictUnverifiable])
}

func TestAnalyzeReplacesPatternsPerCompany(t *testing.T) {
	mock := setupMock(t)

	mock.ExpectQuery(`SELECT DISTINCT c.id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticker", "name", "sector", "created_at"}).
			AddRow(int64(7), "AAPL", "Apple Inc.", "Technology", time.Now()))

	mock.ExpectQuery(`SELECT`).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"c_id", "c_transcript_id", "c_speaker", "c_speaker_role", "c_claim_text",
			"c_metric", "c_metric_kind", "c_stated_value", "c_unit", "c_comparison_period",
			"c_is_gaap", "c_segment", "c_confidence", "c_context",
			"v_id", "v_claim_id", "v_actual_value", "v_accuracy_score", "v_verdict", "v_explanation",
			"v_period_ids", "v_flags",
		}).AddRow(
			int64(1), int64(5), "CFO", "CFO", "Revenue was $100B",
			"revenue", "absolute", 100.0, "usd_billions", "none",
			true, nil, 0.9, "ctx",
			int64(1), int64(1), 101.0, 0.98, "verified", "",
			[]byte("[]"), []byte("[]"),
		))

	mock.ExpectQuery(`SELECT id, company_id, year, quarter, call_date, text, created_at`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "year", "quarter", "call_date", "text", "created_at"}).
			AddRow(int64(5), int64(7), 2025, 2, time.Now(), "call text", time.Now()))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM patterns`).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	o := &Orchestrator{Notifier: &fakeNotifier{}}
	summary, err := o.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CompaniesAnalyzed)
	require.NoError(t, mock.ExpectationsWereMet())
}
