package database

import (
	"fmt"

	"claimauditor/models"
)

// InsertClaim persists a Claim draft produced by the Extraction Adapter.
// Claims are write-once — there is no conflict target to upsert against.
func InsertClaim(c models.Claim) (int64, error) {
	var id int64
	err := DB.QueryRow(`
		INSERT INTO claims (
			transcript_id, speaker, speaker_role, claim_text,
			metric, metric_kind, stated_value, unit, comparison_period,
			is_gaap, segment, confidence, context
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`,
		c.TranscriptID, c.Speaker, c.SpeakerRole, c.ClaimText,
		c.Metric, c.MetricKind, c.StatedValue, c.Unit, c.ComparisonPeriod,
		c.IsGAAP, c.Segment, c.Confidence, c.Context,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert claim for transcript %d: %w", c.TranscriptID, err)
	}
	return id, nil
}

// ClaimForVerification pairs an unverified Claim with the company and
// fiscal period its source Transcript belongs to, the context the
// Verification Engine needs to resolve a comparison period.
type ClaimForVerification struct {
	Claim     models.Claim
	CompanyID int64
	Year      int
	Quarter   int
}

// ListClaimsWithoutVerificationForVerify returns every Claim that has no
// Verification yet, joined against transcripts for the (company, year,
// quarter) context the Verification Engine requires.
func ListClaimsWithoutVerificationForVerify() ([]ClaimForVerification, error) {
	rows, err := DB.Queryx(`
		SELECT c.id, c.transcript_id, c.speaker, c.speaker_role, c.claim_text,
			c.metric, c.metric_kind, c.stated_value, c.unit, c.comparison_period,
			c.is_gaap, c.segment, c.confidence, c.context, c.created_at,
			t.company_id, t.year, t.quarter
		FROM claims c
		JOIN transcripts t ON t.id = c.transcript_id
		LEFT JOIN verifications v ON v.claim_id = c.id
		WHERE v.id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims without verification: %w", err)
	}
	defer rows.Close()

	var out []ClaimForVerification
	for rows.Next() {
		var c models.Claim
		var companyID int64
		var year, quarter int
		if err := rows.Scan(
			&c.ID, &c.TranscriptID, &c.Speaker, &c.SpeakerRole, &c.ClaimText,
			&c.Metric, &c.MetricKind, &c.StatedValue, &c.Unit, &c.ComparisonPeriod,
			&c.IsGAAP, &c.Segment, &c.Confidence, &c.Context, &c.CreatedAt,
			&companyID, &year, &quarter,
		); err != nil {
			return nil, fmt.Errorf("failed to scan claim for verification: %w", err)
		}
		out = append(out, ClaimForVerification{Claim: c, CompanyID: companyID, Year: year, Quarter: quarter})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claims for verification: %w", err)
	}
	return out, nil
}

// ListClaimsByTranscript returns every Claim extracted from one transcript,
// ordered by id for determinism.
func ListClaimsByTranscript(transcriptID int64) ([]models.Claim, error) {
	var claims []models.Claim
	err := DB.Select(&claims, `
		SELECT id, transcript_id, speaker, speaker_role, claim_text,
			metric, metric_kind, stated_value, unit, comparison_period,
			is_gaap, segment, confidence, context, created_at
		FROM claims WHERE transcript_id = $1 ORDER BY id
	`, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims for transcript %d: %w", transcriptID, err)
	}
	return claims, nil
}
