package database

import (
	"fmt"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// skipIfNoTestDB skips the test if INTEGRATION_TEST_DB is not set. This
// allows integration tests to run in CI (with a PostgreSQL service
// container) while skipping gracefully in local dev without a database.
func skipIfNoTestDB(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST_DB") != "true" {
		t.Skip("Skipping integration test: INTEGRATION_TEST_DB not set")
	}
}

// setupTestDB connects to the test database, runs the migrations, swaps
// database.DB to point at the test DB, and registers cleanup to restore the
// original DB and drop tables.
func setupTestDB(t *testing.T) {
	t.Helper()
	skipIfNoTestDB(t)

	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "testuser")
	pass := getEnvOrDefault("DB_PASSWORD", "testpass")
	name := getEnvOrDefault("DB_NAME", "claimauditor_test")
	sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, pass, name, sslmode,
	)

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to connect to test DB: %v", err)
	}

	origDB := DB
	DB = db

	if err := RunMigrations(MigrationsFS); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.MustExec("DROP TABLE IF EXISTS pipeline_runs CASCADE")
		db.MustExec("DROP TABLE IF EXISTS patterns CASCADE")
		db.MustExec("DROP TABLE IF EXISTS verifications CASCADE")
		db.MustExec("DROP TABLE IF EXISTS claims CASCADE")
		db.MustExec("DROP TABLE IF EXISTS financial_periods CASCADE")
		db.MustExec("DROP TABLE IF EXISTS transcripts CASCADE")
		db.MustExec("DROP TABLE IF EXISTS companies CASCADE")
		db.MustExec("DROP TABLE IF EXISTS schema_migrations CASCADE")
		db.Close()
		DB = origDB
	})
}

// cleanTables truncates all tables for isolation between tests.
func cleanTables(t *testing.T) {
	t.Helper()
	DB.MustExec(`TRUNCATE
		pipeline_runs, patterns, verifications, claims, financial_periods, transcripts, companies
		CASCADE`)
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
