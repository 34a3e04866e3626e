package database

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
)

// RunMigrations discovers and applies pending SQL migrations from the
// embedded filesystem. It uses a schema_migrations table, keyed by
// filename and a content checksum, to track which files have been applied
// and to detect one already applied having been edited afterward — the
// batch pipeline runs unattended and on a schedule, so a silently-skipped
// schema drift would surface as a confusing downstream query failure
// instead of a migration error at startup. On an existing database
// (detected by the presence of the "companies" table), all current
// migration files are seeded as already applied to avoid re-running them.
//
// A PostgreSQL advisory lock prevents concurrent pods from racing.
func RunMigrations(migrationsFS fs.FS) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	// Acquire advisory lock to prevent concurrent pods from racing
	// (e.g., two pods starting simultaneously in production).
	// The lock is session-scoped and auto-released on disconnect.
	_, err := DB.Exec("SELECT pg_advisory_lock(1001001001)")
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer DB.Exec("SELECT pg_advisory_unlock(1001001001)") //nolint:errcheck

	if err := ensureMigrationsTable(); err != nil {
		return err
	}

	allFiles, err := discoverMigrations(migrationsFS)
	if err != nil {
		return err
	}
	if len(allFiles) == 0 {
		log.Println("No migration files found")
		return nil
	}

	checksums, err := checksumMigrations(migrationsFS, allFiles)
	if err != nil {
		return err
	}

	applied, err := getAppliedMigrations()
	if err != nil {
		return err
	}

	// Bootstrap: if schema_migrations is empty and database already has
	// tables (existing production DB), seed all filenames as applied.
	if len(applied) == 0 {
		existing, err := hasExistingTables()
		if err != nil {
			return err
		}
		if existing {
			log.Printf("Bootstrapping: seeding %d existing migrations", len(allFiles))
			return seedMigrations(allFiles, checksums)
		}
	}

	if err := verifyChecksums(applied, checksums); err != nil {
		return err
	}

	pending := findPending(allFiles, applied)
	if len(pending) == 0 {
		log.Println("No pending migrations")
		return nil
	}

	log.Printf("Found %d pending migration(s)", len(pending))
	for _, filename := range pending {
		if err := executeMigration(migrationsFS, filename, checksums[filename]); err != nil {
			return fmt.Errorf("migration %s failed: %w", filename, err)
		}
		log.Printf("Applied migration: %s", filename)
	}

	return nil
}

func ensureMigrationsTable() error {
	_, err := DB.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   VARCHAR(255) PRIMARY KEY,
			checksum   VARCHAR(64) NOT NULL DEFAULT '',
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	if _, err := DB.Exec(`ALTER TABLE schema_migrations ADD COLUMN IF NOT EXISTS checksum VARCHAR(64) NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("failed to add checksum column to schema_migrations: %w", err)
	}
	return nil
}

func hasExistingTables() (bool, error) {
	var exists bool
	err := DB.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = 'companies'
		)
	`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing tables: %w", err)
	}
	return exists, nil
}

func discoverMigrations(migrationsFS fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	return files, nil
}

// checksumMigrations hashes every migration file's content so applied
// migrations can be checked for drift.
func checksumMigrations(migrationsFS fs.FS, filenames []string) (map[string]string, error) {
	sums := make(map[string]string, len(filenames))
	for _, f := range filenames {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+f)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", f, err)
		}
		sum := sha256.Sum256(content)
		sums[f] = hex.EncodeToString(sum[:])
	}
	return sums, nil
}

// verifyChecksums fails the run if an already-applied migration's on-disk
// content no longer matches what was recorded when it was applied. An
// empty recorded checksum means the row predates this check (seeded by an
// older bootstrap) and is not verified.
func verifyChecksums(applied map[string]string, checksums map[string]string) error {
	for filename, recorded := range applied {
		if recorded == "" {
			continue
		}
		current, ok := checksums[filename]
		if !ok {
			continue
		}
		if current != recorded {
			return fmt.Errorf("migration %s has changed on disk since it was applied (checksum mismatch); migrations must not be edited after being applied", filename)
		}
	}
	return nil
}

// getAppliedMigrations returns every applied filename mapped to its
// recorded checksum.
func getAppliedMigrations() (map[string]string, error) {
	rows, err := DB.Query("SELECT filename, checksum FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var filename, checksum string
		if err := rows.Scan(&filename, &checksum); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[filename] = checksum
	}
	return applied, rows.Err()
}

func findPending(allFiles []string, applied map[string]string) []string {
	var pending []string
	for _, f := range allFiles {
		if _, ok := applied[f]; !ok {
			pending = append(pending, f)
		}
	}
	return pending
}

func seedMigrations(filenames []string, checksums map[string]string) error {
	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2) ON CONFLICT DO NOTHING")
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("failed to prepare seed statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range filenames {
		if _, err := stmt.Exec(f, checksums[f]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to seed migration %s: %w", f, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	log.Printf("Seeded %d existing migrations into schema_migrations", len(filenames))
	return nil
}

func executeMigration(migrationsFS fs.FS, filename string, checksum string) error {
	content, err := fs.ReadFile(migrationsFS, "migrations/"+filename)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(string(content)); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("failed to execute SQL: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2)", filename, checksum); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
