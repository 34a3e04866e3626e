package database

import "embed"

// MigrationsFS embeds the SQL migration files for RunMigrations, grounded
// on the teacher's embedded-filesystem migration pattern.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
