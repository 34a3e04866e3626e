package database

import (
	"testing"
	"time"

	"claimauditor/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegrationRepositoryRoundTrip exercises the repositories against a
// live Postgres instance. Gated on INTEGRATION_TEST_DB; skipped by default.
func TestIntegrationRepositoryRoundTrip(t *testing.T) {
	setupTestDB(t)
	t.Cleanup(func() { cleanTables(t) })

	companyID, err := UpsertCompany("aapl", "Apple Inc.", "Technology")
	require.NoError(t, err)
	assert.NotZero(t, companyID)

	inserted, transcriptID, err := UpsertTranscript(companyID, 2025, 3, time.Now(), "call text")
	require.NoError(t, err)
	require.True(t, inserted)

	revenue := 94.93e9
	pInserted, _, err := UpsertFinancialPeriod(models.FinancialPeriod{
		CompanyID: companyID, Year: 2025, Quarter: 3, PeriodEnd: time.Now(), Revenue: &revenue,
	})
	require.NoError(t, err)
	require.True(t, pInserted)

	claimID, err := InsertClaim(models.Claim{
		TranscriptID: transcriptID,
		Metric:       "revenue",
		MetricKind:   models.MetricKindAbsolute,
		StatedValue:  94.9,
		Unit:         models.UnitUSDBillions,
		IsGAAP:       true,
	})
	require.NoError(t, err)
	assert.NotZero(t, claimID)

	actual := 94.93e9
	score := 0.99
	vInserted, err := InsertVerification(models.Verification{
		ClaimID:       claimID,
		ActualValue:   &actual,
		AccuracyScore: &score,
		Verdict:       models.VerdictVerified,
		Explanation:   "matches",
	})
	require.NoError(t, err)
	require.True(t, vInserted)

	again, err := InsertVerification(models.Verification{ClaimID: claimID, Verdict: models.VerdictVerified})
	require.NoError(t, err)
	assert.False(t, again, "verify must not mutate existing verifications")

	outcomes, err := ListVerifiedClaimsByCompany(companyID)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.VerdictVerified, outcomes[0].Verification.Verdict)

	err = ReplaceCompanyPatterns(companyID, []models.Pattern{
		{CompanyID: companyID, Kind: models.PatternConsistentRoundingUp, Severity: 0.8, AffectedQuarters: []string{"Q3 2025"}},
	})
	require.NoError(t, err)

	patterns, err := ListCompanyPatterns(companyID)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, models.PatternConsistentRoundingUp, patterns[0].Kind)
}
