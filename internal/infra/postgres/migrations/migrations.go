package migrations

import "github.com/uptrace/bun/migrate"

// Migrations collects every schema change; each file registers itself from init.
var Migrations = migrate.NewMigrations()
