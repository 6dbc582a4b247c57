package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jingkaihe/skillctl/pkg/lint"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// RunRecord is a recorded lint run
type RunRecord struct {
	ID         string    `db:"id" json:"id"`
	Root       string    `db:"root" json:"root"`
	StartedAt  time.Time `db:"started_at" json:"startedAt"`
	DurationMS int64     `db:"duration_ms" json:"durationMs"`
	SkillCount int       `db:"skill_count" json:"skillCount"`
	Errors     int       `db:"errors" json:"errors"`
	Warnings   int       `db:"warnings" json:"warnings"`
	Infos      int       `db:"infos" json:"infos"`
}

type findingRow struct {
	Rule     string `db:"rule"`
	Severity string `db:"severity"`
	Path     string `db:"path"`
	Line     int    `db:"line"`
	Message  string `db:"message"`
	Skill    string `db:"skill"`
	Tree     string `db:"tree"`
}

// RecordRun stores a lint result with its findings and returns the run ID
func (s *Store) RecordRun(ctx context.Context, root string, result *lint.Result) (string, error) {
	counts := result.Counts()
	run := RunRecord{
		ID:         uuid.NewString(),
		Root:       root,
		StartedAt:  result.StartedAt.UTC(),
		DurationMS: result.Duration.Milliseconds(),
		SkillCount: result.SkillCount,
		Errors:     counts.Errors,
		Warnings:   counts.Warnings,
		Infos:      counts.Infos,
	}

	err := s.withRetry(ctx, "record run", func() error {
		return s.inTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO lint_runs (id, root, started_at, duration_ms, skill_count, errors, warnings, infos)
				VALUES (:id, :root, :started_at, :duration_ms, :skill_count, :errors, :warnings, :infos)`, run); err != nil {
				return errors.Wrap(err, "failed to insert lint run")
			}
			for _, f := range result.Findings {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO lint_findings (run_id, rule, severity, path, line, message, skill, tree)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					run.ID, f.Rule, string(f.Severity), f.Path, f.Line, f.Message, f.Skill, f.Tree); err != nil {
					return errors.Wrap(err, "failed to insert finding")
				}
			}
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// ListRuns returns the most recent runs first. A non-positive limit means 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []RunRecord
	if err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM lint_runs ORDER BY started_at DESC, id LIMIT ?", limit); err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	return runs, nil
}

// GetRun returns the run whose ID starts with idPrefix. The prefix must
// identify exactly one run.
func (s *Store) GetRun(ctx context.Context, idPrefix string) (*RunRecord, error) {
	if idPrefix == "" {
		return nil, errors.New("run ID is required")
	}
	var runs []RunRecord
	if err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM lint_runs WHERE id LIKE ? ESCAPE '\\' LIMIT 2", escapeLike(idPrefix)+"%"); err != nil {
		return nil, errors.Wrap(err, "failed to get run")
	}
	switch len(runs) {
	case 0:
		return nil, errors.Wrapf(ErrNotFound, "run %s", idPrefix)
	case 1:
		return &runs[0], nil
	default:
		return nil, errors.Errorf("run ID prefix %q is ambiguous", idPrefix)
	}
}

// RunFindings returns the findings recorded for a run in report order
func (s *Store) RunFindings(ctx context.Context, runID string) ([]lint.Finding, error) {
	var exists int
	err := s.db.GetContext(ctx, &exists, "SELECT 1 FROM lint_runs WHERE id = ?", runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get run")
	}

	var rows []findingRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT rule, severity, path, line, message, skill, tree
		FROM lint_findings WHERE run_id = ? ORDER BY id`, runID); err != nil {
		return nil, errors.Wrap(err, "failed to get findings")
	}

	findings := make([]lint.Finding, 0, len(rows))
	for _, r := range rows {
		findings = append(findings, lint.Finding{
			Rule:     r.Rule,
			Severity: lint.Severity(r.Severity),
			Path:     r.Path,
			Line:     r.Line,
			Message:  r.Message,
			Skill:    r.Skill,
			Tree:     r.Tree,
		})
	}
	return findings, nil
}
