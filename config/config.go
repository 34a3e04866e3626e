// Package config loads Claim Auditor's configuration from environment
// variables, grounded on notification-service/config/config.go's
// getEnv-with-fallback pattern.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// QuarterTarget names one fiscal quarter of one company to target during
// Ingest.
type QuarterTarget struct {
	Year    int
	Quarter int
}

// Config holds every environment-driven option the pipeline recognizes.
type Config struct {
	FMPAPIKey        string
	ExtractionAPIKey string
	ExternalBaseURL  string

	DatabaseURL string

	ExtractionModel        string
	MaxClaimsPerTranscript int

	VerificationTolerance float64
	ApproximateTolerance  float64
	MisleadingThreshold   float64

	TargetTickers  []string
	TargetQuarters []QuarterTarget

	RetryMaxAttempts int
	RetryBaseDelayMs int

	CacheDir              string
	TranscriptFallbackDir string

	AWSRegion           string
	SNSTopicARN         string
	RedisAddr           string
	RedisMemoTTLSeconds int
}

// Load reads environment variables into a Config, calling godotenv.Load()
// first the way main.go does for local development (a missing .env file is
// not an error). Returns an error when a required key is absent.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := &Config{
		FMPAPIKey:        os.Getenv("FMP_API_KEY"),
		ExtractionAPIKey: os.Getenv("EXTRACTION_API_KEY"),
		ExternalBaseURL:  getEnv("EXTERNAL_BASE_URL", "https://financialmodelingprep.com/stable"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		ExtractionModel:        getEnv("EXTRACTION_MODEL", "claim-extraction-v1"),
		MaxClaimsPerTranscript: getEnvInt("MAX_CLAIMS_PER_TRANSCRIPT", 50),

		VerificationTolerance: getEnvFloat("VERIFICATION_TOLERANCE", 0.02),
		ApproximateTolerance:  getEnvFloat("APPROXIMATE_TOLERANCE", 0.10),
		MisleadingThreshold:   getEnvFloat("MISLEADING_THRESHOLD", 0.25),

		TargetTickers:  getEnvList("TARGET_TICKERS"),
		TargetQuarters: ParseQuarters(getEnv("TARGET_QUARTERS", "")),

		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 5),
		RetryBaseDelayMs: getEnvInt("RETRY_BASE_DELAY_MS", 250),

		CacheDir:              getEnv("CACHE_DIR", "./cache"),
		TranscriptFallbackDir: getEnv("TRANSCRIPT_FALLBACK_DIR", "./transcripts"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		SNSTopicARN:         getEnv("SNS_TOPIC_ARN", ""),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisMemoTTLSeconds: getEnvInt("REDIS_MEMO_TTL_SECONDS", 300),
	}

	if cfg.FMPAPIKey == "" {
		return nil, fmt.Errorf("configuration error: FMP_API_KEY is required")
	}
	if cfg.ExtractionAPIKey == "" {
		return nil, fmt.Errorf("configuration error: EXTRACTION_API_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvList splits a comma-separated env var into a trimmed, non-empty
// slice of tickers.
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseQuarters parses a comma-separated list of "YYYYQn" tokens (e.g.
// "2025Q1,2025Q2") into QuarterTargets. Exported so the CLI's -quarters
// flag can reuse the same parsing as TARGET_QUARTERS.
func ParseQuarters(v string) []QuarterTarget {
	if v == "" {
		return nil
	}
	var out []QuarterTarget
	for _, tok := range strings.Split(v, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		idx := strings.IndexByte(tok, 'Q')
		if idx <= 0 {
			continue
		}
		year, err1 := strconv.Atoi(tok[:idx])
		quarter, err2 := strconv.Atoi(tok[idx+1:])
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, QuarterTarget{Year: year, Quarter: quarter})
	}
	return out
}
