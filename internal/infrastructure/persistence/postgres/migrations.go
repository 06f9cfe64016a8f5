package postgres

import "embed"

// Migrations holds the schema, applied at startup via pkg/postgres.RunMigrations.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory within Migrations.
const MigrationsDir = "migrations"
