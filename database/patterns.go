package database

import (
	"encoding/json"
	"fmt"

	"claimauditor/models"
)

// ReplaceCompanyPatterns atomically replaces a company's Pattern set: all
// existing Patterns for companyID are deleted and the new set inserted
// within a single transaction, so concurrent readers see either the old
// set or the new set, never a mixture.
func ReplaceCompanyPatterns(companyID int64, patterns []models.Pattern) error {
	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin pattern replacement transaction: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM patterns WHERE company_id = $1`, companyID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("failed to delete existing patterns for company %d: %w", companyID, err)
	}

	for _, p := range patterns {
		affected, err := json.Marshal(nonNilStrings(p.AffectedQuarters))
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to encode affected_quarters: %w", err)
		}
		evidence, err := json.Marshal(nonNilStrings(p.Evidence))
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to encode evidence: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO patterns (company_id, kind, severity, description, affected_quarters, evidence)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, companyID, p.Kind, p.Severity, p.Description, affected, evidence)
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to insert pattern %s for company %d: %w", p.Kind, companyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pattern replacement for company %d: %w", companyID, err)
	}
	return nil
}

// ListCompanyPatterns returns the current Pattern set for a company.
func ListCompanyPatterns(companyID int64) ([]models.Pattern, error) {
	rows, err := DB.Queryx(`
		SELECT id, company_id, kind, severity, description, affected_quarters, evidence, created_at
		FROM patterns WHERE company_id = $1
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns for company %d: %w", companyID, err)
	}
	defer rows.Close()

	var patterns []models.Pattern
	for rows.Next() {
		var (
			p                  models.Pattern
			kind               string
			affected, evidence []byte
		)
		if err := rows.Scan(&p.ID, &p.CompanyID, &kind, &p.Severity, &p.Description, &affected, &evidence, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pattern row: %w", err)
		}
		p.Kind = models.PatternKind(kind)
		if len(affected) > 0 {
			if err := json.Unmarshal(affected, &p.AffectedQuarters); err != nil {
				return nil, fmt.Errorf("failed to decode affected_quarters: %w", err)
			}
		}
		if len(evidence) > 0 {
			if err := json.Unmarshal(evidence, &p.Evidence); err != nil {
				return nil, fmt.Errorf("failed to decode evidence: %w", err)
			}
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
