package models

import "time"

// Claim is one quantitative statement extracted from a Transcript.
// Created in Extract; immutable.
type Claim struct {
	ID           int64   `db:"id"`
	TranscriptID int64   `db:"transcript_id"`
	Speaker      string  `db:"speaker"`
	SpeakerRole  string  `db:"speaker_role"`
	ClaimText    string  `db:"claim_text"`

	Metric           string           `db:"metric"`
	MetricKind       MetricKind       `db:"metric_kind"`
	StatedValue      float64          `db:"stated_value"`
	Unit             Unit             `db:"unit"`
	ComparisonPeriod ComparisonPeriod `db:"comparison_period"`
	IsGAAP           bool             `db:"is_gaap"`
	Segment          *string          `db:"segment"`
	Confidence       float64          `db:"confidence"`
	Context          string           `db:"context"`

	CreatedAt time.Time `db:"created_at"`
}

// HasSegment reports whether the claim is scoped to a business segment
// rather than total-company figures.
func (c Claim) HasSegment() bool {
	return c.Segment != nil && *c.Segment != ""
}
