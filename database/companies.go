package database

import (
	"fmt"
	"strings"

	"claimauditor/models"
)

// UpsertCompany inserts a Company keyed by its canonicalized (upper-case)
// ticker. An existing row keeps its name and sector; the no-op
// `ON CONFLICT ... DO UPDATE` makes RETURNING yield the existing id.
func UpsertCompany(ticker, name, sector string) (int64, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	var id int64
	err := DB.QueryRow(`
		INSERT INTO companies (ticker, name, sector)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker) DO UPDATE SET ticker = EXCLUDED.ticker
		RETURNING id
	`, ticker, name, sector).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert company %s: %w", ticker, err)
	}
	return id, nil
}

// GetCompanyByTicker looks up a Company by its canonicalized ticker.
func GetCompanyByTicker(ticker string) (models.Company, bool, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	var c models.Company
	err := DB.Get(&c, `SELECT id, ticker, name, sector, created_at FROM companies WHERE ticker = $1`, ticker)
	if err != nil {
		if isNoRows(err) {
			return models.Company{}, false, nil
		}
		return models.Company{}, false, fmt.Errorf("failed to get company %s: %w", ticker, err)
	}
	return c, true, nil
}

// GetCompanyByID looks up a Company by its primary key, used when a stage
// only has a CompanyID on hand (e.g. a Transcript row) and needs the
// ticker back for logging or an adapter call.
func GetCompanyByID(id int64) (models.Company, bool, error) {
	var c models.Company
	err := DB.Get(&c, `SELECT id, ticker, name, sector, created_at FROM companies WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return models.Company{}, false, nil
		}
		return models.Company{}, false, fmt.Errorf("failed to get company %d: %w", id, err)
	}
	return c, true, nil
}

// ListCompaniesWithVerifiedClaims returns every company that has at least
// one verified (non-unverifiable) claim, the Analyze stage's input set.
func ListCompaniesWithVerifiedClaims() ([]models.Company, error) {
	var companies []models.Company
	err := DB.Select(&companies, `
		SELECT DISTINCT c.id, c.ticker, c.name, c.sector, c.created_at
		FROM companies c
		JOIN transcripts t ON t.company_id = c.id
		JOIN claims cl ON cl.transcript_id = t.id
		JOIN verifications v ON v.claim_id = cl.id
		WHERE v.verdict != 'unverifiable'
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies with verified claims: %w", err)
	}
	return companies, nil
}
