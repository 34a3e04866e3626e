package models

import "time"

// Pattern is a cross-quarter finding for a company. Patterns for a company
// are replaced, not merged, on each Analyze run.
type Pattern struct {
	ID          int64       `db:"id"`
	CompanyID   int64       `db:"company_id"`
	Kind        PatternKind `db:"kind"`
	Severity    float64     `db:"severity"`
	Description string      `db:"description"`

	// AffectedQuarters and Evidence are JSON-encoded lists in storage.
	AffectedQuarters []string `db:"-"`
	Evidence         []string `db:"-"`

	CreatedAt time.Time `db:"created_at"`
}
