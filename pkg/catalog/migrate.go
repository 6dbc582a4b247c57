package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// migration is a schema change identified by a YYYYMMDDHHmmss timestamp
type migration struct {
	Version     int64
	Description string
	Statements  []string
}

var migrations = []migration{
	{
		Version:     20261003100000,
		Description: "Create skills table",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS skills (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				root TEXT NOT NULL,
				tree TEXT NOT NULL,
				directory TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL,
				path TEXT NOT NULL,
				hash TEXT NOT NULL,
				body_lines INTEGER NOT NULL,
				reference_count INTEGER NOT NULL,
				example_count INTEGER NOT NULL,
				indexed_at DATETIME NOT NULL,
				UNIQUE (root, tree, directory)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_skills_name ON skills(name)`,
		},
	},
	{
		Version:     20261003100100,
		Description: "Create lint_runs and lint_findings tables",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS lint_runs (
				id TEXT PRIMARY KEY,
				root TEXT NOT NULL,
				started_at DATETIME NOT NULL,
				duration_ms INTEGER NOT NULL,
				skill_count INTEGER NOT NULL,
				errors INTEGER NOT NULL,
				warnings INTEGER NOT NULL,
				infos INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_lint_runs_started_at ON lint_runs(started_at DESC)`,
			`CREATE TABLE IF NOT EXISTS lint_findings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id TEXT NOT NULL REFERENCES lint_runs(id) ON DELETE CASCADE,
				rule TEXT NOT NULL,
				severity TEXT NOT NULL,
				path TEXT NOT NULL,
				line INTEGER NOT NULL,
				message TEXT NOT NULL,
				skill TEXT NOT NULL,
				tree TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_lint_findings_run_id ON lint_findings(run_id)`,
		},
	},
}

// migrate applies pending migrations in version order, one transaction each
func migrate(ctx context.Context, db *sqlx.DB, all []migration) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL,
			description TEXT
		)
	`); err != nil {
		return errors.Wrap(err, "failed to create schema_migrations table")
	}

	var versions []int64
	if err := db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations"); err != nil {
		return errors.Wrap(err, "failed to get applied migrations")
	}
	applied := make(map[int64]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	sorted := make([]migration, len(all))
	copy(sorted, all)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, m := range sorted {
		if applied[m.Version] {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return errors.Wrapf(err, "failed to apply migration %d: %s", m.Version, m.Description)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sqlx.DB, m migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
		m.Version, time.Now().UTC(), m.Description); err != nil {
		return errors.Wrap(err, "failed to record migration")
	}
	return tx.Commit()
}

// appliedVersions lists applied migration versions in order
func appliedVersions(ctx context.Context, db *sqlx.DB) ([]int64, error) {
	var versions []int64
	err := db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations ORDER BY version")
	return versions, errors.Wrap(err, "failed to get applied versions")
}
