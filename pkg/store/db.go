package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Times are stored as Unix milliseconds so ordering in SQL is numeric.
const migrationsSQL = `
CREATE TABLE IF NOT EXISTS vocab_mastery (
	user_id               TEXT    NOT NULL,
	word_id               TEXT    NOT NULL,
	frequency_total       INTEGER NOT NULL DEFAULT 0,
	user_usage_count      INTEGER NOT NULL DEFAULT 0,
	agent_encounter_count INTEGER NOT NULL DEFAULT 0,
	last_seen_at          INTEGER NOT NULL DEFAULT 0,
	memory_strength       REAL    NOT NULL DEFAULT 0,
	next_review_at        INTEGER NOT NULL DEFAULT 0,
	mastery_level         TEXT    NOT NULL DEFAULT 'new',
	PRIMARY KEY (user_id, word_id)
);

CREATE INDEX IF NOT EXISTS idx_vocab_mastery_review ON vocab_mastery (user_id, next_review_at);

CREATE TABLE IF NOT EXISTS usage_log (
	id              TEXT PRIMARY KEY,
	user_id         TEXT    NOT NULL,
	word_id         TEXT    NOT NULL,
	word_form_used  TEXT    NOT NULL,
	word_normalized TEXT    NOT NULL,
	source          TEXT    NOT NULL,
	confidence      REAL    NOT NULL DEFAULT 0,
	part_of_speech  TEXT,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_log_user_word ON usage_log (user_id, word_id);
`

// InitDB runs migrations on the given DB connection.
func InitDB(db *sql.DB) error {
	for _, s := range strings.Split(migrationsSQL, ";") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Open opens the sqlite database at path and migrates it. ":memory:" is
// limited to one connection so every query sees the same database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := InitDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
