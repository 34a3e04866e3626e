package models

import "time"

// Verification is the outcome of reconciling one Claim against financial
// data. At most one per Claim. Created in Verify; write-once.
type Verification struct {
	ID      int64 `db:"id"`
	ClaimID int64 `db:"claim_id"`

	ActualValue  *float64 `db:"actual_value"`
	AccuracyScore *float64 `db:"accuracy_score"`
	Verdict       Verdict  `db:"verdict"`
	Explanation   string   `db:"explanation"`

	// PeriodIDs references the FinancialPeriod rows consulted, JSON-encoded
	// as a list in storage (see database.verificationRow).
	PeriodIDs []int64 `db:"-"`

	// Flags is the set of misleading flags raised, JSON-encoded as a list
	// in storage (see database.verificationRow).
	Flags []MisleadingFlag `db:"-"`

	CreatedAt time.Time `db:"created_at"`
}

// ClaimOutcome pairs a Claim with its Verification for analyzer input, the
// shape the Discrepancy Analyzer consumes grouped by quarter label.
type ClaimOutcome struct {
	Claim        Claim
	Verification Verification
}
