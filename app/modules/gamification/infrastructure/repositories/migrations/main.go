package gamificationmigrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the gamification module's schema migrations.
var Migrations = migrate.NewMigrations()
