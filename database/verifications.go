package database

import (
	"encoding/json"
	"fmt"

	"claimauditor/models"
)

// verificationRow mirrors the verifications table layout for scanning;
// period_ids and flags are stored as JSON arrays and decoded into
// models.Verification's typed slices.
type verificationRow struct {
	ID            int64    `db:"id"`
	ClaimID       int64    `db:"claim_id"`
	ActualValue   *float64 `db:"actual_value"`
	AccuracyScore *float64 `db:"accuracy_score"`
	Verdict       string   `db:"verdict"`
	Explanation   string   `db:"explanation"`
	PeriodIDs     []byte   `db:"period_ids"`
	Flags         []byte   `db:"flags"`
	CreatedAt     string   `db:"created_at"`
}

func (r verificationRow) toModel() (models.Verification, error) {
	v := models.Verification{
		ID:            r.ID,
		ClaimID:       r.ClaimID,
		ActualValue:   r.ActualValue,
		AccuracyScore: r.AccuracyScore,
		Verdict:       models.Verdict(r.Verdict),
		Explanation:   r.Explanation,
	}
	if len(r.PeriodIDs) > 0 {
		if err := json.Unmarshal(r.PeriodIDs, &v.PeriodIDs); err != nil {
			return v, fmt.Errorf("failed to decode period_ids: %w", err)
		}
	}
	if len(r.Flags) > 0 {
		if err := json.Unmarshal(r.Flags, &v.Flags); err != nil {
			return v, fmt.Errorf("failed to decode flags: %w", err)
		}
	}
	return v, nil
}

// InsertVerification persists a Verification for a Claim that does not
// already have one. Returns inserted=false when a Verification already
// exists (Verify's "must not mutate existing Verifications" rule, spec
// §4.8), in which case no write occurred.
func InsertVerification(v models.Verification) (inserted bool, err error) {
	periodIDs, err := json.Marshal(nonNilInt64s(v.PeriodIDs))
	if err != nil {
		return false, fmt.Errorf("failed to encode period_ids: %w", err)
	}
	flags, err := json.Marshal(nonNilFlags(v.Flags))
	if err != nil {
		return false, fmt.Errorf("failed to encode flags: %w", err)
	}

	var id int64
	row := DB.QueryRow(`
		INSERT INTO verifications (claim_id, actual_value, accuracy_score, verdict, explanation, period_ids, flags)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (claim_id) DO NOTHING
		RETURNING id
	`, v.ClaimID, v.ActualValue, v.AccuracyScore, v.Verdict, v.Explanation, periodIDs, flags)

	if scanErr := row.Scan(&id); scanErr != nil {
		if isNoRows(scanErr) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert verification for claim %d: %w", v.ClaimID, scanErr)
	}
	return true, nil
}

// ListVerifiedClaimsByCompany returns every Claim+Verification pair for a
// company, the Discrepancy Analyzer's per-company input.
func ListVerifiedClaimsByCompany(companyID int64) ([]models.ClaimOutcome, error) {
	rows, err := DB.Queryx(`
		SELECT
			c.id AS c_id, c.transcript_id AS c_transcript_id, c.speaker AS c_speaker,
			c.speaker_role AS c_speaker_role, c.claim_text AS c_claim_text,
			c.metric AS c_metric, c.metric_kind AS c_metric_kind, c.stated_value AS c_stated_value,
			c.unit AS c_unit, c.comparison_period AS c_comparison_period, c.is_gaap AS c_is_gaap,
			c.segment AS c_segment, c.confidence AS c_confidence, c.context AS c_context,
			v.id AS v_id, v.claim_id AS v_claim_id, v.actual_value AS v_actual_value,
			v.accuracy_score AS v_accuracy_score, v.verdict AS v_verdict, v.explanation AS v_explanation,
			v.period_ids AS v_period_ids, v.flags AS v_flags
		FROM claims c
		JOIN transcripts t ON t.id = c.transcript_id
		JOIN verifications v ON v.claim_id = c.id
		WHERE t.company_id = $1
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list verified claims for company %d: %w", companyID, err)
	}
	defer rows.Close()

	var outcomes []models.ClaimOutcome
	for rows.Next() {
		var (
			claim                    models.Claim
			vID, vClaimID            int64
			actual, accuracy         *float64
			verdict, explanation     string
			periodIDsRaw, flagsRaw   []byte
		)
		err := rows.Scan(
			&claim.ID, &claim.TranscriptID, &claim.Speaker, &claim.SpeakerRole, &claim.ClaimText,
			&claim.Metric, &claim.MetricKind, &claim.StatedValue, &claim.Unit, &claim.ComparisonPeriod,
			&claim.IsGAAP, &claim.Segment, &claim.Confidence, &claim.Context,
			&vID, &vClaimID, &actual, &accuracy, &verdict, &explanation, &periodIDsRaw, &flagsRaw,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan verified claim row: %w", err)
		}

		row := verificationRow{
			ID: vID, ClaimID: vClaimID, ActualValue: actual, AccuracyScore: accuracy,
			Verdict: verdict, Explanation: explanation, PeriodIDs: periodIDsRaw, Flags: flagsRaw,
		}
		v, err := row.toModel()
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, models.ClaimOutcome{Claim: claim, Verification: v})
	}
	return outcomes, rows.Err()
}

func nonNilInt64s(s []int64) []int64 {
	if s == nil {
		return []int64{}
	}
	return s
}

func nonNilFlags(s []models.MisleadingFlag) []models.MisleadingFlag {
	if s == nil {
		return []models.MisleadingFlag{}
	}
	return s
}
