package database

import (
	"encoding/json"
	"fmt"
	"time"
)

// PipelineRun is a persisted per-stage run summary, recorded alongside
// logging so a caller can inspect prior outcomes without grepping logs,
// grounded on the schema_migrations bookkeeping table pattern.
type PipelineRun struct {
	ID         int64      `db:"id"`
	Stage      string     `db:"stage"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
	OK         bool       `db:"ok"`
	Summary    []byte     `db:"summary"`
}

// RecordPipelineRun persists one completed stage's run summary.
func RecordPipelineRun(stage string, startedAt, finishedAt time.Time, ok bool, summary interface{}) error {
	encoded, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode pipeline run summary: %w", err)
	}

	_, err = DB.Exec(`
		INSERT INTO pipeline_runs (stage, started_at, finished_at, ok, summary)
		VALUES ($1, $2, $3, $4, $5)
	`, stage, startedAt, finishedAt, ok, encoded)
	if err != nil {
		return fmt.Errorf("failed to record pipeline run for stage %s: %w", stage, err)
	}
	return nil
}

// LastPipelineRun returns the most recent run recorded for a stage.
func LastPipelineRun(stage string) (PipelineRun, bool, error) {
	var run PipelineRun
	err := DB.Get(&run, `
		SELECT id, stage, started_at, finished_at, ok, summary
		FROM pipeline_runs WHERE stage = $1 ORDER BY started_at DESC LIMIT 1
	`, stage)
	if err != nil {
		if isNoRows(err) {
			return PipelineRun{}, false, nil
		}
		return PipelineRun{}, false, fmt.Errorf("failed to get last pipeline run for stage %s: %w", stage, err)
	}
	return run, true, nil
}
