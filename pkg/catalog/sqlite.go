package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA cache_size=1000",
	"PRAGMA temp_store=memory",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// openDatabase opens or creates the SQLite file at path in WAL mode
func openDatabase(ctx context.Context, path string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create catalog directory")
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open catalog database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping catalog database")
	}

	// pragmas are per connection
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		pragmaCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := db.ExecContext(pragmaCtx, pragma)
		cancel()
		if err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	var journalMode string
	if err := db.GetContext(ctx, &journalMode, "PRAGMA journal_mode"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		db.Close()
		return nil, errors.Errorf("WAL mode not enabled. Current mode: %s", journalMode)
	}

	return db, nil
}
