// Package database holds the persistent store: the sqlx/lib/pq connection,
// the migration runner, and one repository file per entity in the data
// model. Grounded on the teacher's database package connection-handling
// idioms (DB package variable, Initialize/Close/HealthCheck).
package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// DB is the package-level connection handle every repository function
// reads from, matching the teacher's convention of a single shared
// connection rather than per-call dependency injection.
var DB *sqlx.DB

// Initialize opens the database connection for databaseURL and verifies
// it with a ping.
func Initialize(databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("database not initialized: DATABASE_URL is empty")
	}

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	DB = db
	return nil
}

// Close releases the database connection. Safe to call when DB was never
// initialized.
func Close() error {
	if DB == nil {
		return nil
	}
	return DB.Close()
}

// HealthCheck pings the database, grounded on main.go's /health endpoint
// logic minus the HTTP transport. Used by pipeline.HealthCheck, which the
// CLI's -health flag surfaces.
func HealthCheck() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return DB.Ping()
}
