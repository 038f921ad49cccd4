// internal/archive/db.go
//
// SQLite handling for the results archive.
// Responsibilities:
//   - Open (and create if missing) the archive database file with safe
//     defaults (WAL, busy timeout, foreign keys).
//   - Apply the archive schema idempotently on startup.
//
// The archive is optional: main only opens it when ARCHIVE_DB_PATH is set,
// and a nil *Store disables archiving without sprinkling checks around.

package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_results (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    game_id       TEXT      NOT NULL,
    finished_at   TIMESTAMP NOT NULL,
    turns         INTEGER   NOT NULL,
    winner        TEXT      NOT NULL,
    winner_score  INTEGER   NOT NULL,
    scores_json   TEXT      NOT NULL,
    created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_game_results_winner ON game_results(winner);
CREATE INDEX IF NOT EXISTS idx_game_results_finished_at ON game_results(finished_at);
`

// Open opens the archive database at dsn and ensures its schema exists.
func Open(dsn string) (*sql.DB, error) {
	// Ensure directory exists for ./data/archive.db, etc.
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
