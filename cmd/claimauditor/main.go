// Command claimauditor drives the four-stage Claim Auditor pipeline
// (ingest, extract, verify, analyze) against one Postgres database,
// grounded on cmd/import-tickers/main.go's flag-parsed batch-job shape.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"claimauditor/config"
	"claimauditor/database"
	"claimauditor/pipeline"
	"claimauditor/services"
	"claimauditor/storage"
	"claimauditor/verify"
)

var (
	steps    = flag.String("steps", "ingest,extract,verify,analyze", "comma-separated stages to run, in order")
	tickers  = flag.String("tickers", "", "comma-separated tickers to ingest (overrides TARGET_TICKERS)")
	quarters = flag.String("quarters", "", "comma-separated YYYYQn quarters to target (overrides TARGET_QUARTERS)")
	health   = flag.Bool("health", false, "print readiness status (database + last run per stage) and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	if err := database.Initialize(cfg.DatabaseURL); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer database.Close() //nolint:errcheck

	if *health {
		runHealthCheck()
		return
	}

	if err := database.RunMigrations(database.MigrationsFS); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	orchestrator, err := buildOrchestrator(cfg)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	targetTickers := cfg.TargetTickers
	if *tickers != "" {
		targetTickers = splitUpper(*tickers)
	}

	targetQuarters := cfg.TargetQuarters
	if *quarters != "" {
		targetQuarters = config.ParseQuarters(*quarters)
	}

	ctx := context.Background()
	for _, stage := range splitUpper(*steps) {
		runStage(ctx, orchestrator, strings.ToLower(stage), targetTickers, targetQuarters)
	}
}

func runHealthCheck() {
	h, err := pipeline.HealthCheck()
	if err != nil {
		log.Fatalf("health check failed: %v", err)
	}
	log.Printf("database: ok=%v", h.DatabaseOK)
	for _, stage := range pipeline.Stages {
		run, ok := h.LastRuns[stage]
		if !ok {
			log.Printf("%s: no prior run recorded", stage)
			continue
		}
		log.Printf("%s: last run at %s, ok=%v", stage, run.StartedAt, run.OK)
	}
}

func buildOrchestrator(cfg *config.Config) (*pipeline.Orchestrator, error) {
	cache, err := storage.New(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	source := services.NewSource(cfg.ExternalBaseURL, cfg.FMPAPIKey, cache, cfg.TranscriptFallbackDir)
	source.Retry = services.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
	}
	source.Memo = services.NewMemo(cfg.RedisAddr, time.Duration(cfg.RedisMemoTTLSeconds)*time.Second)

	extractor, err := services.NewExtractionAdapter(cfg.ExtractionAPIKey, cfg.ExtractionModel)
	if err != nil {
		return nil, err
	}

	verifier := verify.New(database.PeriodRepo{})

	var notifier pipeline.Notifier = pipeline.NopNotifier{}
	if cfg.SNSTopicARN != "" {
		sns, err := pipeline.NewSNSNotifier(context.Background(), cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			log.Printf("warning: SNS notifier unavailable, falling back to no-op: %v", err)
		} else {
			notifier = sns
		}
	}

	return pipeline.NewOrchestrator(source, extractor, verifier, notifier), nil
}

func runStage(ctx context.Context, o *pipeline.Orchestrator, stage string, tickers []string, quarters []config.QuarterTarget) {
	switch stage {
	case "ingest":
		summary, err := o.Ingest(ctx, tickers, quarters)
		if err != nil {
			log.Fatalf("ingest failed: %v", err)
		}
		log.Printf("ingest: %+v", summary)
	case "extract":
		summary, err := o.Extract(ctx)
		if err != nil {
			log.Fatalf("extract failed: %v", err)
		}
		log.Printf("extract: %+v", summary)
	case "verify":
		summary, err := o.Verify(ctx)
		if err != nil {
			log.Fatalf("verify failed: %v", err)
		}
		log.Printf("verify: %+v", summary)
	case "analyze":
		summary, err := o.Analyze(ctx)
		if err != nil {
			log.Fatalf("analyze failed: %v", err)
		}
		log.Printf("analyze: %+v", summary)
	default:
		log.Printf("warning: unknown stage %q, skipping", stage)
	}
}

func splitUpper(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
