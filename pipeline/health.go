package pipeline

import "claimauditor/database"

// Stages lists every stage whose last run HealthCheck reports on, in
// pipeline order.
var Stages = []string{"ingest", "extract", "verify", "analyze"}

// Health reports the orchestrator process's readiness: the database
// connection and the most recent recorded run of each stage.
type Health struct {
	DatabaseOK bool
	LastRuns   map[string]database.PipelineRun
}

// HealthCheck pings the database and looks up each stage's last recorded
// PipelineRun, the readiness check the CLI's -health flag surfaces.
// Returns an error only when the database itself is unreachable; a stage
// with no prior run is simply absent from LastRuns.
func HealthCheck() (Health, error) {
	h := Health{LastRuns: map[string]database.PipelineRun{}}

	if err := database.HealthCheck(); err != nil {
		return h, err
	}
	h.DatabaseOK = true

	for _, stage := range Stages {
		if run, ok, err := database.LastPipelineRun(stage); err == nil && ok {
			h.LastRuns[stage] = run
		}
	}
	return h, nil
}
