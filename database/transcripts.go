package database

import (
	"fmt"
	"time"

	"claimauditor/models"
)

// UpsertTranscript inserts a Transcript keyed by (company, year, quarter).
// Returns inserted=false when the unique key already existed (Ingest's
// skip-when-exists upsert semantics), in which case id is 0.
func UpsertTranscript(companyID int64, year, quarter int, callDate time.Time, text string) (inserted bool, id int64, err error) {
	row := DB.QueryRow(`
		INSERT INTO transcripts (company_id, year, quarter, call_date, text)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id, year, quarter) DO NOTHING
		RETURNING id
	`, companyID, year, quarter, callDate, text)

	if scanErr := row.Scan(&id); scanErr != nil {
		if isNoRows(scanErr) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to upsert transcript for company %d %dQ%d: %w", companyID, year, quarter, scanErr)
	}
	return true, id, nil
}

// GetTranscript looks up a Transcript by (company, year, quarter).
func GetTranscript(companyID int64, year, quarter int) (models.Transcript, bool, error) {
	var t models.Transcript
	err := DB.Get(&t, `
		SELECT id, company_id, year, quarter, call_date, text, created_at
		FROM transcripts WHERE company_id = $1 AND year = $2 AND quarter = $3
	`, companyID, year, quarter)
	if err != nil {
		if isNoRows(err) {
			return models.Transcript{}, false, nil
		}
		return models.Transcript{}, false, fmt.Errorf("failed to get transcript: %w", err)
	}
	return t, true, nil
}

// GetTranscriptByID looks up a Transcript by its primary key, used by the
// Analyze stage to recover a claim's quarter label from its TranscriptID.
func GetTranscriptByID(id int64) (models.Transcript, bool, error) {
	var t models.Transcript
	err := DB.Get(&t, `
		SELECT id, company_id, year, quarter, call_date, text, created_at
		FROM transcripts WHERE id = $1
	`, id)
	if err != nil {
		if isNoRows(err) {
			return models.Transcript{}, false, nil
		}
		return models.Transcript{}, false, fmt.Errorf("failed to get transcript %d: %w", id, err)
	}
	return t, true, nil
}

// ListTranscriptsWithoutClaims returns every Transcript that has zero
// Claims, the Extract stage's work queue.
func ListTranscriptsWithoutClaims() ([]models.Transcript, error) {
	var transcripts []models.Transcript
	err := DB.Select(&transcripts, `
		SELECT t.id, t.company_id, t.year, t.quarter, t.call_date, t.text, t.created_at
		FROM transcripts t
		LEFT JOIN claims c ON c.transcript_id = t.id
		WHERE c.id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts without claims: %w", err)
	}
	return transcripts, nil
}
