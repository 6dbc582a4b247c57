// Package catalog persists an index of skills and the history of lint runs
// in a local SQLite database.
package catalog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/skills"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a skill or run does not exist in the catalog
var ErrNotFound = errors.New("not found in catalog")

// SkillRecord is one indexed skill
type SkillRecord struct {
	ID             int64     `db:"id" json:"-"`
	Root           string    `db:"root" json:"root"`
	Tree           string    `db:"tree" json:"tree"`
	Directory      string    `db:"directory" json:"directory"`
	Name           string    `db:"name" json:"name"`
	Description    string    `db:"description" json:"description"`
	Path           string    `db:"path" json:"path"`
	Hash           string    `db:"hash" json:"hash"`
	BodyLines      int       `db:"body_lines" json:"bodyLines"`
	ReferenceCount int       `db:"reference_count" json:"referenceCount"`
	ExampleCount   int       `db:"example_count" json:"exampleCount"`
	IndexedAt      time.Time `db:"indexed_at" json:"indexedAt"`
}

// IndexStats summarizes what an IndexCorpus call changed
type IndexStats struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}

// Store is the catalog database
type Store struct {
	db   *sqlx.DB
	path string
}

// DefaultPath returns the catalog location, $SKILLCTL_BASE_PATH/catalog.db
// or ~/.skillctl/catalog.db
func DefaultPath() (string, error) {
	if base := os.Getenv("SKILLCTL_BASE_PATH"); base != "" {
		return filepath.Join(base, "catalog.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(home, ".skillctl", "catalog.db"), nil
}

// Open opens the catalog at path, creating and migrating it as needed
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := openDatabase(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db, migrations); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to run catalog migrations")
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// IndexCorpus upserts every skill of the corpus and removes rows for skills
// of the same root that no longer exist. Re-indexing an unchanged corpus
// reports every skill as unchanged.
func (s *Store) IndexCorpus(ctx context.Context, corpus *skills.Corpus) (IndexStats, error) {
	var stats IndexStats
	err := s.withRetry(ctx, "index corpus", func() error {
		stats = IndexStats{}
		return s.inTx(ctx, func(tx *sqlx.Tx) error {
			return indexCorpus(ctx, tx, corpus, &stats)
		})
	})
	if err != nil {
		return IndexStats{}, err
	}
	logger.G(ctx).WithField("root", corpus.Root).
		WithField("added", stats.Added).
		WithField("updated", stats.Updated).
		WithField("removed", stats.Removed).
		Debug("indexed corpus")
	return stats, nil
}

func indexCorpus(ctx context.Context, tx *sqlx.Tx, corpus *skills.Corpus, stats *IndexStats) error {
	var existing []SkillRecord
	if err := tx.SelectContext(ctx, &existing,
		"SELECT id, tree, directory, hash FROM skills WHERE root = ?", corpus.Root); err != nil {
		return errors.Wrap(err, "failed to read indexed skills")
	}
	known := make(map[string]SkillRecord, len(existing))
	for _, r := range existing {
		known[r.Tree+"/"+r.Directory] = r
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(corpus.Skills))
	for _, skill := range corpus.Skills {
		key := skill.Tree + "/" + skill.DirName()
		seen[key] = true
		record := recordFor(corpus, skill, now)

		prev, ok := known[key]
		switch {
		case !ok:
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO skills (root, tree, directory, name, description, path, hash,
					body_lines, reference_count, example_count, indexed_at)
				VALUES (:root, :tree, :directory, :name, :description, :path, :hash,
					:body_lines, :reference_count, :example_count, :indexed_at)`, record); err != nil {
				return errors.Wrapf(err, "failed to insert skill %s", key)
			}
			stats.Added++
		case prev.Hash != record.Hash:
			record.ID = prev.ID
			if _, err := tx.NamedExecContext(ctx, `
				UPDATE skills SET name = :name, description = :description, path = :path,
					hash = :hash, body_lines = :body_lines, reference_count = :reference_count,
					example_count = :example_count, indexed_at = :indexed_at
				WHERE id = :id`, record); err != nil {
				return errors.Wrapf(err, "failed to update skill %s", key)
			}
			stats.Updated++
		default:
			stats.Unchanged++
		}
	}

	for key, r := range known {
		if seen[key] {
			continue
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM skills WHERE id = ?", r.ID); err != nil {
			return errors.Wrapf(err, "failed to remove skill %s", key)
		}
		stats.Removed++
	}
	return nil
}

func recordFor(corpus *skills.Corpus, skill *skills.Skill, now time.Time) SkillRecord {
	return SkillRecord{
		Root:           corpus.Root,
		Tree:           skill.Tree,
		Directory:      skill.DirName(),
		Name:           skill.Name,
		Description:    skill.Description,
		Path:           corpus.Rel(skill.Path),
		Hash:           skill.Hash,
		BodyLines:      skill.BodyLines,
		ReferenceCount: len(skill.References),
		ExampleCount:   len(skill.Examples),
		IndexedAt:      now,
	}
}

// Search returns skills whose name or description contains query, ignoring
// case. An empty tree searches every tree, a non-positive limit means 50.
func (s *Store) Search(ctx context.Context, query, tree string, limit int) ([]SkillRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	var records []SkillRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT * FROM skills
		WHERE (? = '' OR tree = ?)
			AND (LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'
				OR LOWER(directory) LIKE ? ESCAPE '\')
		ORDER BY name, tree, root
		LIMIT ?`,
		tree, tree, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search skills")
	}
	return records, nil
}

// Get returns the most recently indexed skill with the given directory name
// in tree
func (s *Store) Get(ctx context.Context, tree, name string) (*SkillRecord, error) {
	var record SkillRecord
	err := s.db.GetContext(ctx, &record, `
		SELECT * FROM skills WHERE tree = ? AND directory = ?
		ORDER BY indexed_at DESC LIMIT 1`, tree, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "skill %s/%s", tree, name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get skill")
	}
	return &record, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

// withRetry retries fn while SQLite reports the database as busy
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		fn,
		retry.RetryIf(isBusy),
		retry.Attempts(5),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(time.Second),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("attempt", n+1).
				WithField("operation", op).
				Warn("catalog is busy, retrying")
		}),
	)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked")
}
